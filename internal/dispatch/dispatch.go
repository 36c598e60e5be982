// Package dispatch orchestrates dispatch+poll for a cycle's saved
// searches in bounded-parallelism waves: at most Parallel searches are
// in flight at once, and a wave fully completes (successes and
// failures alike) before the next one starts. This bounds peak
// connections the way the teacher's sink fan-out bounds concurrent
// writers per pool.
package dispatch

import (
	"context"
	"sync"

	"github.com/long0419/splunk-event-collector/internal/timeutil"
	"github.com/long0419/splunk-event-collector/internal/types"
)

// Job pairs one saved search with the window the planner chose for it.
type Job struct {
	Search types.SavedSearch
	Window types.QueryWindow
}

// Outcome is the result of running one Job: either Result is populated
// or Err is non-nil, never both.
type Outcome struct {
	Search types.SavedSearch
	Result types.DispatchResult
	Err    error
}

// Runner performs the dispatch-then-poll sequence for a single job. It
// is the narrow seam splunkapi.Client satisfies, kept as an interface
// so tests can substitute a fake without an HTTP server.
type Runner interface {
	Dispatch(ctx context.Context, search types.SavedSearch, window types.QueryWindow) (string, error)
	Poll(ctx context.Context, search types.SavedSearch, sid string) (types.DispatchResult, error)
}

// Run executes jobs in waves of at most parallel concurrent operations,
// preserving the input order in the returned outcome slice regardless
// of completion order within a wave.
func Run(ctx context.Context, runner Runner, jobs []Job, parallel int) []Outcome {
	if parallel < 1 {
		parallel = 1
	}
	outcomes := make([]Outcome, len(jobs))
	offset := 0

	for _, wave := range timeutil.Chunks(jobs, parallel) {
		var wg sync.WaitGroup
		wg.Add(len(wave))
		for i, job := range wave {
			go func(idx int, job Job) {
				defer wg.Done()
				outcomes[offset+idx] = runOne(ctx, runner, job)
			}(i, job)
		}
		wg.Wait()
		offset += len(wave)
	}

	return outcomes
}

func runOne(ctx context.Context, runner Runner, job Job) Outcome {
	sid, err := runner.Dispatch(ctx, job.Search, job.Window)
	if err != nil {
		return Outcome{Search: job.Search, Err: err}
	}
	result, err := runner.Poll(ctx, job.Search, sid)
	if err != nil {
		return Outcome{Search: job.Search, Err: err}
	}
	return Outcome{Search: job.Search, Result: result}
}
