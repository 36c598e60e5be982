package cursorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/long0419/splunk-event-collector/internal/planner"
)

func TestMemoryStoreMissingKeyReturnsZeroCursor(t *testing.T) {
	store := NewMemoryStore()
	cursor, err := store.Get(context.Background(), Key{Instance: "a", Search: "events"})
	require.NoError(t, err)
	assert.False(t, cursor.Committed)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	key := Key{Instance: "a", Search: "events"}
	want := planner.Cursor{Committed: true, LastCommittedTime: 123.456}

	require.NoError(t, store.Put(context.Background(), key, want))

	got, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
