// Package store defines the data-source and data-sink abstraction over
// collections of records, plus the composite source and the explicit
// environment object that higher layers inject where storage is needed.
//
// A source may hold several versions of the same identifier, distinguished
// by their modified timestamps. Stored records are never mutated in place; a
// new version is a new record. Backends live in the subpackages memstore,
// filestore and sqlstore.
package store

import (
	"context"
	"errors"
	"sort"

	stix2 "github.com/threatline/stix2"
	"github.com/threatline/stix2/timestamp"
)

// ErrNotFound signals that a lookup by identifier, or resolution of a
// reference field, found nothing. Callers treat it as an empty result, not
// a hard failure.
var ErrNotFound = errors.New("object not found")

// DataSource retrieves and filters collections of records.
type DataSource interface {
	// Get returns the version of id with the latest modified timestamp,
	// or ErrNotFound.
	Get(ctx context.Context, id string) (*stix2.Record, error)

	// AllVersions returns every stored version of id, ordered by modified,
	// or ErrNotFound when none exist.
	AllVersions(ctx context.Context, id string) ([]*stix2.Record, error)

	// Query returns the latest version of every object satisfying all
	// filters (logical AND), ordered by identifier.
	Query(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error)

	// QueryAllVersions returns every stored version satisfying all filters,
	// ordered by modified timestamp.
	QueryAllVersions(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error)
}

// DataSink persists records.
type DataSink interface {
	// Add stores a new version keyed by (id, modified). Adding an already
	// stored version is a no-op. On durable backends the version is fully
	// persisted before Add returns.
	Add(ctx context.Context, rec *stix2.Record) error
}

// DataStore is a combined source and sink.
type DataStore interface {
	DataSource
	DataSink
}

// AddBundle feeds every member of a bundle to the sink, in order.
func AddBundle(ctx context.Context, sink DataSink, bundle *stix2.Record) error {
	for _, rec := range stix2.BundleObjects(bundle) {
		if err := sink.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// VersionKey identifies one stored version: identifier plus formatted
// modified timestamp. Used for deduplication across sources.
func VersionKey(rec *stix2.Record) string {
	return rec.ID() + "|" + timestamp.Format(rec.Modified())
}

// SortByModified orders records by modified timestamp ascending, with the
// version key as tiebreaker so the order is total.
func SortByModified(recs []*stix2.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Modified().Equal(recs[j].Modified()) {
			return recs[i].Modified().Before(recs[j].Modified())
		}
		return VersionKey(recs[i]) < VersionKey(recs[j])
	})
}

// LatestPerID reduces a version set to the latest version of each
// identifier, ordered by identifier for deterministic output.
func LatestPerID(recs []*stix2.Record) []*stix2.Record {
	latest := make(map[string]*stix2.Record)
	for _, rec := range recs {
		if cur, ok := latest[rec.ID()]; !ok || rec.Modified().After(cur.Modified()) {
			latest[rec.ID()] = rec
		}
	}
	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*stix2.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, latest[id])
	}
	return out
}
