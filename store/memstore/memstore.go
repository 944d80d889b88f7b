// Package memstore provides an in-memory data store with the same logical
// structure as the durable backends: per-identifier version lists keyed by
// modified timestamp.
package memstore

import (
	"context"
	"sort"
	"sync"

	stix2 "github.com/threatline/stix2"
	"github.com/threatline/stix2/store"
)

// Store keeps records in an in-process map. Safe for concurrent readers;
// a single writer at a time is the contract, as for the durable backends.
type Store struct {
	mu sync.RWMutex

	// versions maps identifier to stored versions, ordered by modified.
	versions map[string][]*stix2.Record
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{versions: make(map[string][]*stix2.Record)}
}

// Add stores a new version keyed by (id, modified). Adding an already
// stored version is a no-op.
func (s *Store) Add(ctx context.Context, rec *stix2.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := store.VersionKey(rec)
	for _, existing := range s.versions[rec.ID()] {
		if store.VersionKey(existing) == key {
			return nil
		}
	}

	s.versions[rec.ID()] = append(s.versions[rec.ID()], rec)
	store.SortByModified(s.versions[rec.ID()])
	return nil
}

// Get returns the latest version of id, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*stix2.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[id]
	if len(versions) == 0 {
		return nil, store.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

// AllVersions returns every stored version of id ordered by modified, or
// store.ErrNotFound.
func (s *Store) AllVersions(ctx context.Context, id string) ([]*stix2.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[id]
	if len(versions) == 0 {
		return nil, store.ErrNotFound
	}
	out := make([]*stix2.Record, len(versions))
	copy(out, versions)
	return out, nil
}

// Query returns the latest version of every object satisfying all filters,
// ordered by identifier as every backend does. Filters apply to the latest
// version only; superseded versions are not consulted.
func (s *Store) Query(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest []*stix2.Record
	for _, versions := range s.versions {
		if len(versions) == 0 {
			continue
		}
		rec := versions[len(versions)-1]
		if stix2.MatchAll(rec, filters) {
			latest = append(latest, rec)
		}
	}
	sort.Slice(latest, func(i, j int) bool { return latest[i].ID() < latest[j].ID() })
	return latest, nil
}

// QueryAllVersions returns every stored version satisfying all filters.
func (s *Store) QueryAllVersions(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*stix2.Record
	for _, versions := range s.versions {
		for _, rec := range versions {
			if stix2.MatchAll(rec, filters) {
				out = append(out, rec)
			}
		}
	}
	store.SortByModified(out)
	return out, nil
}
