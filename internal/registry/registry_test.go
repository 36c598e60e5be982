package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/long0419/splunk-event-collector/internal/config"
)

type fakeInventory struct {
	names []string
	err   error
}

func (f fakeInventory) Inventory(ctx context.Context, timeout time.Duration) ([]string, error) {
	return f.names, f.err
}

func TestResolveWildcardMatchesInventory(t *testing.T) {
	inv := fakeInventory{names: []string{"events", "blaat"}}
	selectors := []config.SavedSearchSelector{{Match: "even*"}}

	reg, err := Resolve(context.Background(), inv, selectors, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"events"}, reg.Names)
}

func TestResolveWildcardEmptyInventory(t *testing.T) {
	inv := fakeInventory{names: []string{}}
	selectors := []config.SavedSearchSelector{{Match: "even*"}}

	reg, err := Resolve(context.Background(), inv, selectors, time.Second)
	require.NoError(t, err)
	assert.Len(t, reg.Names, 0)
}

func TestResolveLiteralOrderThenWildcardAlphabetical(t *testing.T) {
	inv := fakeInventory{names: []string{"zeta", "alpha", "beta", "gamma"}}
	selectors := []config.SavedSearchSelector{
		{Name: "zeta"},
		{Match: "*"},
	}

	reg, err := Resolve(context.Background(), inv, selectors, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "beta", "gamma"}, reg.Names)
}

func TestResolveDropsLiteralNotInInventory(t *testing.T) {
	inv := fakeInventory{names: []string{"events"}}
	selectors := []config.SavedSearchSelector{{Name: "missing"}}

	reg, err := Resolve(context.Background(), inv, selectors, time.Second)
	require.NoError(t, err)
	assert.Len(t, reg.Names, 0)
}

func TestResolveInventoryErrorFailsRegistry(t *testing.T) {
	inv := fakeInventory{err: assertError{}}
	_, err := Resolve(context.Background(), inv, nil, time.Second)
	require.Error(t, err)
}

type assertError struct{}

func (assertError) Error() string { return "inventory unreachable" }
