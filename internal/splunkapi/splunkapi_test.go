package splunkapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/long0419/splunk-event-collector/internal/types"
)

func testSearch() types.SavedSearch {
	return types.SavedSearch{
		Name:                        "events",
		BatchSize:                   100,
		RequestTimeout:              2 * time.Second,
		SearchMaxRetryCount:         3,
		SearchSecondsBetweenRetries: 10 * time.Millisecond,
	}
}

func TestDispatchReturnsSID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/search/jobs/events", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"sid": "abc123"})
	}))
	defer server.Close()

	client := NewClient(types.InstanceConfig{BaseURL: server.URL, Username: "u", Password: "p", VerifyTLS: true})
	sid, err := client.Dispatch(context.Background(), testSearch(), types.QueryWindow{Earliest: 0})
	require.NoError(t, err)
	assert.Equal(t, "abc123", sid)
}

func TestPollRetriesOn204ThenSucceeds(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{},
			"results":  []map[string]any{},
		})
	}))
	defer server.Close()

	client := NewClient(types.InstanceConfig{BaseURL: server.URL, Username: "u", Password: "p", VerifyTLS: true})
	result, err := client.Poll(context.Background(), testSearch(), "sid1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Empty(t, result.Results)
}

func TestPollFailsOnFatalMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"type": "FATAL", "text": "bad search"}},
			"results":  []map[string]any{},
		})
	}))
	defer server.Close()

	client := NewClient(types.InstanceConfig{BaseURL: server.URL, Username: "u", Password: "p", VerifyTLS: true})
	_, err := client.Poll(context.Background(), testSearch(), "sid1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad search")
}

func TestInventoryListsNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"entry": []map[string]string{{"name": "events"}, {"name": "errors"}},
		})
	}))
	defer server.Close()

	client := NewClient(types.InstanceConfig{BaseURL: server.URL, Username: "u", Password: "p", VerifyTLS: true})
	names, err := client.Inventory(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"events", "errors"}, names)
}
