// Package driver runs one collection tick end to end: resolve the
// registry, ask the planner for a window per saved search, dispatch
// and poll in waves, parse and deduplicate events, hand them to the
// sink, and commit or roll back each search's cursor depending on the
// outcome. It is the Check Driver of the collection engine, grounded
// on the teacher's readInto loop in cdc/resolver.go, which runs the
// same resolve-then-apply-then-commit-or-hold sequence per resolved
// timestamp window.
package driver

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/long0419/splunk-event-collector/internal/config"
	"github.com/long0419/splunk-event-collector/internal/cursorstore"
	"github.com/long0419/splunk-event-collector/internal/dispatch"
	"github.com/long0419/splunk-event-collector/internal/events"
	"github.com/long0419/splunk-event-collector/internal/health"
	"github.com/long0419/splunk-event-collector/internal/metrics"
	"github.com/long0419/splunk-event-collector/internal/planner"
	"github.com/long0419/splunk-event-collector/internal/registry"
	"github.com/long0419/splunk-event-collector/internal/types"
)

// Clock abstracts "now" so tests can drive fixed times through the
// planner without sleeping; production wiring supplies time.Now.
type Clock func() float64

// RealClock returns the wall-clock time in epoch seconds.
func RealClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Instance bundles what one configured Splunk endpoint needs to run a
// tick: its resolved config, the selectors it was configured with, and
// an HTTP client satisfying both registry.Inventory and
// dispatch.Runner. The downstream sink is shared on Driver.
type Instance struct {
	Key       string
	Config    types.InstanceConfig
	Selectors []config.SavedSearchSelector
	Client    interface {
		registry.Inventory
		dispatch.Runner
	}
}

// Driver runs ticks across a fixed set of configured instances,
// persisting cursors through a shared Store and funneling events
// through a shared EventSink.
type Driver struct {
	Instances   []Instance
	Store       cursorstore.Store
	Sink        types.EventSink
	Health      health.Reporter
	Clock       Clock
	ForceReload func(instanceKey string) bool
}

// RunTick executes one pass over every configured instance and
// reports whether any search signaled continue_after_commit, in which
// case the caller should invoke RunTick again without waiting for the
// next scheduled interval.
func (d *Driver) RunTick(ctx context.Context) (continueNow bool, err error) {
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	now := d.now()
	anyFailure := false

	for _, inst := range d.Instances {
		cont, instErr := d.runInstance(ctx, inst, now)
		if instErr != nil {
			anyFailure = true
			log.WithError(instErr).WithField("instance", inst.Key).Error("tick failed for instance")
		}
		continueNow = continueNow || cont
	}

	if anyFailure {
		return continueNow, errors.New("one or more instances failed this tick")
	}
	return continueNow, nil
}

func (d *Driver) now() float64 {
	if d.Clock != nil {
		return d.Clock()
	}
	return RealClock()
}

func (d *Driver) forceReload(key string) bool {
	if d.ForceReload == nil {
		return false
	}
	return d.ForceReload(key)
}

func (d *Driver) runInstance(ctx context.Context, inst Instance, now float64) (bool, error) {
	inventoryTimeout := time.Duration(inst.Config.Defaults.RequestTimeoutSeconds) * time.Second
	reg, err := registry.Resolve(ctx, inst.Client, inst.Selectors, inventoryTimeout)
	if err != nil {
		d.Health.Report(health.CriticalReport(inst.Key, "*", err))
		return false, errors.Wrap(err, "resolving registry")
	}

	searches, err := reg.Resolved(inst.Selectors, inst.Config.Defaults)
	if err != nil {
		d.Health.Report(health.CriticalReport(inst.Key, "*", err))
		return false, err
	}

	type plannedSearch struct {
		search types.SavedSearch
		cursor planner.Cursor
		plan   planner.Plan
	}

	var jobs []dispatch.Job
	var planned []plannedSearch
	forceReload := d.forceReload(inst.Key)

	for _, search := range searches {
		key := cursorstore.Key{Instance: inst.Key, Search: search.Name}
		cursor, getErr := d.Store.Get(ctx, key)
		if getErr != nil {
			return false, errors.Wrapf(getErr, "reading cursor for %s", search.Name)
		}
		if !cursor.Committed && cursor.InitialDelayUntil == 0 && search.InitialDelaySeconds > 0 {
			cursor = planner.NewDelayedCursor(now, search.InitialDelaySeconds)
			if putErr := d.Store.Put(ctx, key, cursor); putErr != nil {
				return false, errors.Wrapf(putErr, "seeding initial delay cursor for %s", search.Name)
			}
		}
		plan := planner.NextWindow(cursor, now, forceReload, search)
		if plan.Skip {
			continue
		}
		jobs = append(jobs, dispatch.Job{Search: search, Window: plan.Window})
		planned = append(planned, plannedSearch{search: search, cursor: cursor, plan: plan})
	}

	if len(jobs) == 0 {
		return false, nil
	}

	outcomes := dispatch.Run(ctx, inst.Client, jobs, inst.Config.SavedSearchesParallel)

	continueNow := false
	instanceFailed := false

	for i, outcome := range outcomes {
		ps := planned[i]
		if outcome.Err != nil {
			instanceFailed = true
			d.Health.Report(health.CriticalReport(inst.Key, ps.search.Name, outcome.Err))
			metrics.CursorRollbacks.WithLabelValues(inst.Config.BaseURL, ps.search.Name).Inc()
			continue
		}

		rawResults := make([]events.Raw, 0, len(outcome.Result.Results))
		for _, r := range outcome.Result.Results {
			rawResults = append(rawResults, events.Raw(r))
		}

		records, duplicates, parseErr := events.ParseAll(rawResults, inst.Config.Tags)
		if parseErr != nil {
			instanceFailed = true
			d.Health.Report(health.CriticalReport(inst.Key, ps.search.Name, parseErr))
			metrics.CursorRollbacks.WithLabelValues(inst.Config.BaseURL, ps.search.Name).Inc()
			continue
		}
		if duplicates > 0 {
			metrics.EventsDeduplicated.WithLabelValues(inst.Config.BaseURL, ps.search.Name).Add(float64(duplicates))
		}

		if sinkErr := d.Sink.Submit(ctx, inst.Config, ps.search, records); sinkErr != nil {
			instanceFailed = true
			d.Health.Report(health.CriticalReport(inst.Key, ps.search.Name, sinkErr))
			metrics.CursorRollbacks.WithLabelValues(inst.Config.BaseURL, ps.search.Name).Inc()
			continue
		}

		maxTimestamp := math.Inf(-1)
		for _, r := range records {
			if r.Timestamp > maxTimestamp {
				maxTimestamp = r.Timestamp
			}
		}

		newCursor := planner.Commit(ps.cursor, ps.plan.Window, now, maxTimestamp)
		key := cursorstore.Key{Instance: inst.Key, Search: ps.search.Name}
		if putErr := d.Store.Put(ctx, key, newCursor); putErr != nil {
			instanceFailed = true
			d.Health.Report(health.CriticalReport(inst.Key, ps.search.Name, putErr))
			metrics.CursorRollbacks.WithLabelValues(inst.Config.BaseURL, ps.search.Name).Inc()
			continue
		}

		metrics.CursorCommits.WithLabelValues(inst.Config.BaseURL, ps.search.Name).Inc()
		metrics.EventsEmitted.WithLabelValues(inst.Config.BaseURL, ps.search.Name).Add(float64(len(records)))
		d.Health.Report(health.OKReport(inst.Key, ps.search.Name))
		continueNow = continueNow || ps.plan.ContinueAfterCommit
	}

	if instanceFailed {
		return continueNow, errors.Errorf("instance %s had one or more failing saved searches", inst.Key)
	}
	return continueNow, nil
}
