// Package metrics declares the Prometheus instrumentation surface for
// the collector, following the same promauto + HistogramVec/CounterVec
// conventions as the teacher's internal/staging/stage/metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LatencyBuckets are the histogram buckets used for all duration
// metrics in this package, sized for sub-second to multi-minute HTTP
// round trips against a Splunk search head.
var LatencyBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// SearchLabels names the saved search and the instance it belongs to,
// mirroring the teacher's TableLabels convention.
var SearchLabels = []string{"instance", "search"}

var (
	// DispatchDurations times the POST that creates a search job.
	DispatchDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splunk_collector_dispatch_duration_seconds",
		Help:    "time taken to dispatch a saved search",
		Buckets: LatencyBuckets,
	}, SearchLabels)

	// DispatchErrors counts dispatch POST failures.
	DispatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splunk_collector_dispatch_errors_total",
		Help: "number of times dispatching a saved search failed",
	}, SearchLabels)

	// PollDurations times the full paginated retrieval of one search's results.
	PollDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splunk_collector_poll_duration_seconds",
		Help:    "time taken to retrieve all result pages for a saved search",
		Buckets: LatencyBuckets,
	}, SearchLabels)

	// PollRetries counts HTTP 204 (results-not-ready) retries.
	PollRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splunk_collector_poll_retries_total",
		Help: "number of times a result page was retried after an HTTP 204",
	}, SearchLabels)

	// PollErrors counts poll failures (fatal message, retries exhausted, transport).
	PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splunk_collector_poll_errors_total",
		Help: "number of times polling a saved search's results failed",
	}, SearchLabels)

	// EventsEmitted counts events handed to the downstream sink, after
	// in-cycle deduplication.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splunk_collector_events_emitted_total",
		Help: "number of deduplicated events handed to the downstream sink",
	}, SearchLabels)

	// EventsDeduplicated counts events dropped by in-cycle deduplication.
	EventsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splunk_collector_events_deduplicated_total",
		Help: "number of events dropped because they repeated within a cycle",
	}, SearchLabels)

	// CursorCommits counts successful temporal cursor advances.
	CursorCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splunk_collector_cursor_commits_total",
		Help: "number of times a saved search's temporal cursor advanced",
	}, SearchLabels)

	// CursorRollbacks counts cycles where the cursor was left unchanged
	// due to a downstream or transport failure.
	CursorRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splunk_collector_cursor_rollbacks_total",
		Help: "number of times a saved search's cycle failed and its cursor was not advanced",
	}, SearchLabels)

	// TickDuration times one full check-driver tick across every search.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "splunk_collector_tick_duration_seconds",
		Help:    "time taken to complete one check-driver tick",
		Buckets: LatencyBuckets,
	})
)
