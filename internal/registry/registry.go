// Package registry resolves an instance's configured saved-search
// selectors (literal names and wildcard globs) against the server's
// live saved-search inventory, producing the ordered, deduplicated
// list of searches a cycle will dispatch. This mirrors the teacher's
// pattern of resolving a logical name against a live catalog before
// acting on it, generalized from table discovery to saved-search
// discovery.
package registry

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/long0419/splunk-event-collector/internal/config"
	"github.com/long0419/splunk-event-collector/internal/types"
)

// Inventory is the subset of splunkapi.Client this package depends on,
// kept narrow so registry tests can supply a fake without pulling in
// the HTTP client.
type Inventory interface {
	Inventory(ctx context.Context, timeout time.Duration) ([]string, error)
}

// Registry is the resolved, ordered set of saved searches one
// instance's cycle will operate on.
type Registry struct {
	Names []string
}

// Resolve expands selectors against the live inventory. Literal
// selectors are kept in configured order and checked for existence;
// wildcard selectors are expanded against the inventory in
// alphabetical order. The combined list is deduplicated, literals
// first, preserving the ordering the collection spec requires.
func Resolve(ctx context.Context, inv Inventory, selectors []config.SavedSearchSelector, timeout time.Duration) (Registry, error) {
	live, err := inv.Inventory(ctx, timeout)
	if err != nil {
		return Registry{}, errors.Wrap(err, "resolving saved search registry")
	}
	liveSet := make(map[string]struct{}, len(live))
	for _, n := range live {
		liveSet[n] = struct{}{}
	}

	seen := make(map[string]struct{})
	var ordered []string

	for _, sel := range selectors {
		if sel.IsWildcard() {
			continue
		}
		if _, ok := liveSet[sel.Name]; !ok {
			continue
		}
		if _, dup := seen[sel.Name]; dup {
			continue
		}
		seen[sel.Name] = struct{}{}
		ordered = append(ordered, sel.Name)
	}

	var wildcardMatches []string
	for _, sel := range selectors {
		if !sel.IsWildcard() {
			continue
		}
		for _, name := range live {
			ok, err := filepath.Match(sel.Match, name)
			if err != nil {
				return Registry{}, errors.Wrapf(err, "invalid wildcard pattern %q", sel.Match)
			}
			if !ok {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			wildcardMatches = append(wildcardMatches, name)
		}
	}
	sort.Strings(wildcardMatches)
	ordered = append(ordered, wildcardMatches...)

	return Registry{Names: ordered}, nil
}

// Resolved builds the fully-merged SavedSearch values for every name
// in the registry, given the selector each came from.
func (r Registry) Resolved(selectors []config.SavedSearchSelector, defaults config.Defaults) ([]types.SavedSearch, error) {
	bySelector := make(map[string]config.SavedSearchSelector)
	var wildcards []config.SavedSearchSelector
	for _, sel := range selectors {
		if sel.IsWildcard() {
			wildcards = append(wildcards, sel)
			continue
		}
		bySelector[sel.Name] = sel
	}

	out := make([]types.SavedSearch, 0, len(r.Names))
	for _, name := range r.Names {
		sel, ok := bySelector[name]
		if !ok {
			sel, ok = matchingWildcard(wildcards, name)
		}
		if !ok {
			continue
		}
		resolved, err := types.Resolve(sel, name, defaults)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func matchingWildcard(wildcards []config.SavedSearchSelector, name string) (config.SavedSearchSelector, bool) {
	for _, sel := range wildcards {
		if ok, _ := filepath.Match(sel.Match, name); ok {
			return sel, true
		}
	}
	return config.SavedSearchSelector{}, false
}
