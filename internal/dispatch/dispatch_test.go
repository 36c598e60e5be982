package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/long0419/splunk-event-collector/internal/types"
)

type fakeRunner struct {
	inFlight  int32
	maxInFlight int32
}

func (f *fakeRunner) Dispatch(ctx context.Context, search types.SavedSearch, window types.QueryWindow) (string, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		old := atomic.LoadInt32(&f.maxInFlight)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxInFlight, old, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return search.Name + "-sid", nil
}

func (f *fakeRunner) Poll(ctx context.Context, search types.SavedSearch, sid string) (types.DispatchResult, error) {
	return types.DispatchResult{SID: sid, Search: search}, nil
}

func TestRunRespectsParallelismCap(t *testing.T) {
	runner := &fakeRunner{}
	var jobs []Job
	for i := 1; i <= 5; i++ {
		jobs = append(jobs, Job{Search: types.SavedSearch{Name: namedSearch(i)}})
	}

	outcomes := Run(context.Background(), runner, jobs, 2)

	require.Len(t, outcomes, 5)
	assert.LessOrEqual(t, runner.maxInFlight, int32(2))
	for i, o := range outcomes {
		require.NoError(t, o.Err)
		assert.Equal(t, namedSearch(i+1)+"-sid", o.Result.SID)
	}
}

func namedSearch(i int) string {
	return "savedsearch" + string(rune('0'+i))
}
