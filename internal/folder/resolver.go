// Package folder resolves free-text location/course tokens to remote folder
// identities.
//
// The query token is usually a CRN or module identifier, not a literal folder
// name, so resolution is fuzzy: exact match first, then substring, then a
// starts-with tie-break, then shortest name. The final fallback is a
// heuristic (the least-qualified containing name is usually the module's own
// folder rather than a sub-folder) and is not guaranteed correct.
package folder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stevobenno/panosync/internal/domain"
)

// ErrNotFound is returned when no folder name matches the query. Callers must
// treat it as a per-event failure, never as fatal to the run.
var ErrNotFound = errors.New("folder: no match for query")

// Lister supplies the complete remote folder listing.
type Lister interface {
	ListAll(ctx context.Context) ([]domain.Folder, error)
}

// Resolver resolves queries against the full remote listing. It is run-scoped:
// the listing is fetched once, lazily, on the first Resolve call, and cached
// results are never invalidated (the listing does not change mid-run). Not
// safe for concurrent use; runs are single-threaded.
type Resolver struct {
	lister Lister
	all    []domain.Folder
	loaded bool
	cache  map[string]*domain.Folder // lowercased query -> match, nil = not found
}

// NewResolver returns a Resolver over the given listing. Create one per run
// and discard it when the run completes.
func NewResolver(l Lister) *Resolver {
	return &Resolver{
		lister: l,
		cache:  make(map[string]*domain.Folder),
	}
}

// Resolve maps a query token to a folder.
func (r *Resolver) Resolve(ctx context.Context, query string) (domain.Folder, error) {
	if strings.TrimSpace(query) == "" {
		return domain.Folder{}, ErrNotFound
	}

	key := strings.ToLower(query)
	if cached, ok := r.cache[key]; ok {
		if cached == nil {
			return domain.Folder{}, ErrNotFound
		}
		return *cached, nil
	}

	if !r.loaded {
		all, err := r.lister.ListAll(ctx)
		if err != nil {
			return domain.Folder{}, fmt.Errorf("list folders: %w", err)
		}
		r.all = all
		r.loaded = true
	}

	match := r.match(query)
	r.cache[key] = match
	if match == nil {
		return domain.Folder{}, ErrNotFound
	}
	return *match, nil
}

// match applies the resolution precedence. Each step short-circuits.
func (r *Resolver) match(query string) *domain.Folder {
	// 1. Exact name match.
	for i := range r.all {
		if strings.EqualFold(r.all[i].Name, query) {
			return &r.all[i]
		}
	}

	// 2. Substring match.
	lowered := strings.ToLower(query)
	var contains []*domain.Folder
	for i := range r.all {
		if strings.Contains(strings.ToLower(r.all[i].Name), lowered) {
			contains = append(contains, &r.all[i])
		}
	}

	if len(contains) == 0 {
		return nil
	}
	if len(contains) == 1 {
		return contains[0]
	}

	// 3. Tie-break: prefer names starting with the query (CRN-style).
	var starts []*domain.Folder
	for _, f := range contains {
		if len(f.Name) >= len(query) && strings.EqualFold(f.Name[:len(query)], query) {
			starts = append(starts, f)
		}
	}
	if len(starts) == 1 {
		return starts[0]
	}

	// Shortest containing name wins: the least-qualified match is usually
	// the module folder itself. Deterministic, but only a best guess.
	best := contains[0]
	for _, f := range contains[1:] {
		if len(f.Name) < len(best.Name) {
			best = f
		}
	}
	return best
}
