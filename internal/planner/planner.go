// Package planner implements the temporal cursor state machine: the
// part of the system that decides, once per cycle and per saved
// search, which time window to query next and whether that window's
// outcome may advance the cursor. It is grounded on the teacher's
// resolved-timestamp tracking in cdc/resolver.go (readInto's
// advance-on-success, hold-on-failure loop) and its OnBegin/OnCommit/
// OnRollback transaction discipline in serial_events.go, generalized
// from a single monotonic resolved timestamp to a per-search cursor
// with history backfill and chunking.
package planner

import (
	"math"

	"github.com/long0419/splunk-event-collector/internal/types"
)

// State names the planner's current phase for one saved search, used
// for logging and tests; the window computation does not branch on
// the stored State field directly, it derives state from the cursor
// shape each cycle.
type State int

const (
	// Delay means the configured initial_delay_seconds has not elapsed.
	Delay State = iota
	// InitialHistory means this is the first cycle for this search.
	InitialHistory
	// ChunkedHistory means the planner is still catching up to now.
	ChunkedHistory
	// Realtime means the cursor is within one chunk width of now.
	Realtime
)

func (s State) String() string {
	switch s {
	case Delay:
		return "DELAY"
	case InitialHistory:
		return "INITIAL_HISTORY"
	case ChunkedHistory:
		return "CHUNKED_HISTORY"
	case Realtime:
		return "REALTIME"
	default:
		return "UNKNOWN"
	}
}

// dedupSeam is the "+1 microsecond" offset added to the last emitted
// event's timestamp before it becomes the next cycle's earliest time.
const dedupSeam = 0.000001

// Cursor is the persisted state for one (instance, saved search) pair.
// A zero Cursor (Committed == false) means no cycle has ever succeeded
// for this search; the planner treats that as "no committed time" and
// enters INITIAL_HISTORY.
type Cursor struct {
	Committed         bool
	LastCommittedTime float64
	InitialDelayUntil float64
}

// Plan is the outcome of asking the planner for this cycle's window:
// either Skip is true (nothing to dispatch this cycle) or Window names
// the range to query, State records which phase produced it, and
// ContinueAfterCommit tells the driver whether to re-invoke this cycle
// immediately after commit rather than waiting for the next tick.
type Plan struct {
	Skip                bool
	Window              types.QueryWindow
	State               State
	ContinueAfterCommit bool
}

// NextWindow computes this cycle's QueryWindow for one saved search.
// now is the current time in epoch seconds; forceReload signals that
// the driver wants history replayed back to maxRestartHistorySeconds
// even though a cursor is already committed.
func NextWindow(cursor Cursor, now float64, forceReload bool, search types.SavedSearch) Plan {
	if !cursor.Committed && cursor.InitialDelayUntil > 0 && now < cursor.InitialDelayUntil {
		return Plan{Skip: true, State: Delay}
	}

	latestBound := now

	var earliest float64
	var fromInitial bool
	switch {
	case !cursor.Committed:
		earliest = now - float64(search.MaxInitialHistorySeconds)
		fromInitial = true
	case forceReload:
		earliest = math.Max(cursor.LastCommittedTime, now-float64(search.MaxRestartHistorySeconds))
	default:
		earliest = cursor.LastCommittedTime
	}

	// Clamp against clock skew: never issue an inverted window.
	if latestBound < earliest {
		latestBound = earliest
	}
	if cursor.Committed && latestBound < cursor.LastCommittedTime {
		latestBound = cursor.LastCommittedTime
	}

	chunk := float64(search.MaxQueryChunkSeconds)
	gap := latestBound - earliest

	if chunk > 0 && gap > chunk {
		upper := earliest + chunk
		state := ChunkedHistory
		if fromInitial {
			state = InitialHistory
		}
		return Plan{
			Window:              types.QueryWindow{Earliest: earliest, Latest: &upper},
			State:               state,
			ContinueAfterCommit: true,
		}
	}

	return Plan{
		Window:              types.QueryWindow{Earliest: earliest, Latest: nil},
		State:               Realtime,
		ContinueAfterCommit: false,
	}
}

// Commit computes the next Cursor after a cycle's window succeeded
// downstream. prior is the cursor this cycle's window was planned
// from, clamped against so a backward clock skew can never move
// LastCommittedTime backward. now is the cycle's start time, passed
// again so a window with no Latest (a realtime tail query) still has
// something to advance to when zero events were returned.
// maxEventTimestamp is the largest EventRecord.Timestamp observed in
// the cycle's surviving events, or math.Inf(-1) if none were emitted.
func Commit(prior Cursor, window types.QueryWindow, now, maxEventTimestamp float64) Cursor {
	upperBound := now
	if window.HasLatest() {
		upperBound = *window.Latest
	}

	next := upperBound
	if !math.IsInf(maxEventTimestamp, -1) {
		seamed := maxEventTimestamp + dedupSeam
		if seamed > next {
			next = seamed
		}
	}
	if prior.Committed && next < prior.LastCommittedTime {
		next = prior.LastCommittedTime
	}

	return Cursor{Committed: true, LastCommittedTime: next}
}

// Rollback returns the cursor unchanged; it exists purely to make the
// no-advance-on-failure rule explicit at call sites rather than
// relying on callers to simply not call Commit.
func Rollback(cursor Cursor) Cursor {
	return cursor
}

// NewDelayedCursor builds the zero cursor for a search whose instance
// configures an initial delay, so the first NextWindow call returns a
// Skip plan until deadline.
func NewDelayedCursor(now float64, initialDelaySeconds int) Cursor {
	if initialDelaySeconds <= 0 {
		return Cursor{}
	}
	return Cursor{InitialDelayUntil: now + float64(initialDelaySeconds)}
}
