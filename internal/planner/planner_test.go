package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/long0419/splunk-event-collector/internal/types"
)

func search(chunk, restart, initial int) types.SavedSearch {
	return types.SavedSearch{
		Name:                     "events",
		MaxQueryChunkSeconds:     chunk,
		MaxRestartHistorySeconds: restart,
		MaxInitialHistorySeconds: initial,
	}
}

func TestInitialHistoryUsesMaxInitialHistorySeconds(t *testing.T) {
	now := 1488997799.0 // 2017-03-08T18:29:59Z
	plan := NextWindow(Cursor{}, now, false, search(3600, 86400, 120))
	require.False(t, plan.Skip)
	assert.Equal(t, now-120, plan.Window.Earliest)
}

func TestEarliestTimeContinuityAcrossCycles(t *testing.T) {
	now := 1488997799.0
	s := search(3600, 86400, 0)
	plan := NextWindow(Cursor{}, now, false, s)
	require.False(t, plan.Skip)

	cursor := Commit(Cursor{}, plan.Window, now, now)
	nextPlan := NextWindow(cursor, now+5, false, s)
	assert.Equal(t, now+dedupSeam, nextPlan.Window.Earliest)
}

func TestInitialDelaySkipsUntilDeadline(t *testing.T) {
	cursor := NewDelayedCursor(1, 60)
	plan := NextWindow(cursor, 1, false, search(3600, 86400, 0))
	assert.True(t, plan.Skip)

	plan = NextWindow(cursor, 30, false, search(3600, 86400, 0))
	assert.True(t, plan.Skip)

	plan = NextWindow(cursor, 62, false, search(3600, 86400, 0))
	assert.False(t, plan.Skip)
}

func TestChunkedRestartRecoveryProducesSequentialHourChunks(t *testing.T) {
	s := search(3600, 86400, 0)
	committed := 1488931201.0 // 2017-03-08T00:00:01Z
	now := 1488974400.0       // 2017-03-08T12:00:00Z

	cursor := Cursor{Committed: true, LastCommittedTime: committed}
	plan := NextWindow(cursor, now, true, s)

	chunkCount := 0
	for plan.ContinueAfterCommit {
		require.True(t, plan.Window.HasLatest())
		assert.LessOrEqual(t, *plan.Window.Latest-plan.Window.Earliest, float64(s.MaxQueryChunkSeconds))
		cursor = Commit(cursor, plan.Window, now, math.Inf(-1))
		chunkCount++
		plan = NextWindow(cursor, now, false, s)
	}

	assert.Equal(t, 11, chunkCount)
	assert.False(t, plan.Window.HasLatest())
}

func TestForceReloadClampsToRestartHistory(t *testing.T) {
	s := search(3600, 3600, 0)
	committed := 1000.0
	now := 100000.0
	plan := NextWindow(Cursor{Committed: true, LastCommittedTime: committed}, now, true, s)
	assert.Equal(t, now-3600, plan.Window.Earliest)
}

func TestClockSkewNeverProducesInvertedWindow(t *testing.T) {
	s := search(3600, 86400, 0)
	cursor := Cursor{Committed: true, LastCommittedTime: 5000}
	plan := NextWindow(cursor, 100, false, s)
	if plan.Window.HasLatest() {
		assert.GreaterOrEqual(t, *plan.Window.Latest, plan.Window.Earliest)
	}
}

func TestCommitAdvancesEvenWithZeroEvents(t *testing.T) {
	window := types.QueryWindow{Earliest: 10, Latest: floatPtr(20)}
	cursor := Commit(Cursor{}, window, 100, math.Inf(-1))
	assert.Equal(t, 20.0, cursor.LastCommittedTime)
}

func TestCommitNeverMovesBeforePriorCommittedTime(t *testing.T) {
	prior := Cursor{Committed: true, LastCommittedTime: 5000}
	window := types.QueryWindow{Earliest: 4000, Latest: nil}
	cursor := Commit(prior, window, 100, math.Inf(-1))
	assert.Equal(t, prior.LastCommittedTime, cursor.LastCommittedTime)
}

func floatPtr(f float64) *float64 { return &f }
