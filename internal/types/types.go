// Package types contains the data types and interfaces that define the
// major functional blocks of the collector. Keeping them in one place,
// the way the teacher's internal/types package does for cdc-sink,
// makes it easy to compose the registry, planner, dispatcher and
// driver without import cycles.
package types

import (
	"context"
	"time"

	"github.com/long0419/splunk-event-collector/internal/config"
)

// SavedSearch is the per-cycle, resolved view of a configured saved
// search: every tunable has already been merged with the instance
// defaults, so downstream code never needs to see a zero value meaning
// "use the default."
type SavedSearch struct {
	Name       string
	Parameters map[string]string

	BatchSize                   int
	RequestTimeout              time.Duration
	SearchMaxRetryCount         int
	SearchSecondsBetweenRetries time.Duration
	MaxRestartHistorySeconds    int
	MaxQueryChunkSeconds        int
	MaxInitialHistorySeconds    int
	InitialDelaySeconds         int
}

// Resolve builds a SavedSearch from a configured selector, a literal
// name (which may differ from selector.Name when the selector is a
// wildcard match), and the instance defaults.
func Resolve(selector config.SavedSearchSelector, name string, defaults config.Defaults) (SavedSearch, error) {
	batchSize := orDefault(selector.BatchSize, defaults.BatchSize)
	if batchSize < 1 {
		batchSize = 1
	}

	restartHistory := selector.MaxRestartHistorySeconds
	if restartHistory == 0 {
		var err error
		restartHistory, err = defaults.ResolvedRestartHistorySeconds()
		if err != nil {
			return SavedSearch{}, err
		}
	}

	chunk := selector.MaxQueryChunkSeconds
	if selector.MaxQueryTimeRange != 0 {
		if chunk != 0 && chunk != selector.MaxQueryTimeRange {
			return SavedSearch{}, errConflictingChunkAlias(name)
		}
		chunk = selector.MaxQueryTimeRange
	}
	if chunk == 0 {
		var err error
		chunk, err = defaults.ResolvedQueryChunkSeconds()
		if err != nil {
			return SavedSearch{}, err
		}
	}

	return SavedSearch{
		Name:                        name,
		Parameters:                  selector.Parameters,
		BatchSize:                   batchSize,
		RequestTimeout:              time.Duration(orDefault(selector.RequestTimeoutSeconds, defaults.RequestTimeoutSeconds)) * time.Second,
		SearchMaxRetryCount:         orDefault(selector.SearchMaxRetryCount, defaults.SearchMaxRetryCount),
		SearchSecondsBetweenRetries: time.Duration(orDefault(selector.SearchSecondsBetweenRetries, defaults.SearchSecondsBetweenRetries)) * time.Second,
		MaxRestartHistorySeconds:    restartHistory,
		MaxQueryChunkSeconds:        chunk,
		MaxInitialHistorySeconds:    orDefault(selector.MaxInitialHistorySeconds, defaults.InitialHistorySeconds),
		InitialDelaySeconds:         defaults.InitialDelaySeconds,
	}, nil
}

func orDefault(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// InstanceConfig is the immutable, fully-resolved configuration for one
// Splunk endpoint, built once per configured instance.
type InstanceConfig struct {
	BaseURL               string
	Username              string
	Password              string
	VerifyTLS             bool
	SavedSearchesParallel int
	Tags                  []string
	Defaults              config.Defaults
}

// AuthTuple returns the HTTP basic-auth credential pair.
func (c InstanceConfig) AuthTuple() (string, string) {
	return c.Username, c.Password
}

// QueryWindow is the time range a single dispatch should query. Latest
// is nil for a real-time, open-ended tail query.
type QueryWindow struct {
	Earliest float64
	Latest   *float64
}

// HasLatest reports whether this window carries an upper bound.
func (w QueryWindow) HasLatest() bool {
	return w.Latest != nil
}

// EventRecord is a single emitted event, already flattened from raw
// Splunk result fields into the shape the downstream sink expects.
type EventRecord struct {
	Timestamp      float64
	EventType      *string
	MsgTitle       *string
	MsgText        *string
	SourceTypeName *string
	Tags           []string

	// DedupKey identifies this record for in-cycle deduplication.
	DedupKey string
}

// DispatchResult carries the outcome of dispatching and polling one
// saved search: the opaque search id and the flattened, ordered list
// of raw result objects pulled from every page.
type DispatchResult struct {
	SID      string
	Search   SavedSearch
	Messages []ResultMessage
	Results  []map[string]any
}

// ResultMessage mirrors a Splunk "messages" array entry.
type ResultMessage struct {
	Type string
	Text string
}

// EventSink is the downstream collaborator that receives deduplicated
// events for a cycle. It is an external interface: the core does not
// care how events ultimately leave the process.
type EventSink interface {
	// Submit hands a batch of events for one saved search to the
	// downstream pipeline. A nil error means the cycle's temporal
	// cursor may be committed; any error means it must not be.
	Submit(ctx context.Context, instance InstanceConfig, search SavedSearch, events []EventRecord) error
}

func errConflictingChunkAlias(search string) error {
	return &ConflictingAliasError{Search: search, KeyA: "max_query_chunk_seconds", KeyB: "max_query_time_range"}
}

// ConflictingAliasError reports that a saved search set two alias keys
// to different values.
type ConflictingAliasError struct {
	Search     string
	KeyA, KeyB string
}

func (e *ConflictingAliasError) Error() string {
	return "saved search " + e.Search + ": conflicting values for aliased keys " + e.KeyA + " and " + e.KeyB
}
