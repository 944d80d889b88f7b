package store

import (
	"context"
	"errors"
	"fmt"

	stix2 "github.com/threatline/stix2"
)

// Environment binds a source, a sink, and construction options into one
// explicit, caller-held object. Functions needing storage or lookup take an
// Environment; there is no process-wide default.
type Environment struct {
	source DataSource
	sink   DataSink
	opts   []stix2.Option
}

// NewEnvironment builds an environment over the given source and sink.
// Either may be nil when only one direction is needed. The options (clock,
// identifier generator, custom-field allowance) apply to every record the
// environment creates.
func NewEnvironment(source DataSource, sink DataSink, opts ...stix2.Option) *Environment {
	return &Environment{source: source, sink: sink, opts: opts}
}

// Create constructs a record of the given type with the environment's
// construction options applied.
func (e *Environment) Create(typeTag string, props stix2.Properties) (*stix2.Record, error) {
	return stix2.New(typeTag, props, e.opts...)
}

// Add persists a record through the environment's sink.
func (e *Environment) Add(ctx context.Context, rec *stix2.Record) error {
	if e.sink == nil {
		return fmt.Errorf("environment has no data sink")
	}
	return e.sink.Add(ctx, rec)
}

// Get retrieves the latest version of id from the environment's source.
func (e *Environment) Get(ctx context.Context, id string) (*stix2.Record, error) {
	if e.source == nil {
		return nil, fmt.Errorf("environment has no data source")
	}
	return e.source.Get(ctx, id)
}

// AllVersions retrieves every version of id from the environment's source.
func (e *Environment) AllVersions(ctx context.Context, id string) ([]*stix2.Record, error) {
	if e.source == nil {
		return nil, fmt.Errorf("environment has no data source")
	}
	return e.source.AllVersions(ctx, id)
}

// Query runs a filtered query against the environment's source.
func (e *Environment) Query(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	if e.source == nil {
		return nil, fmt.Errorf("environment has no data source")
	}
	return e.source.Query(ctx, filters)
}

// QueryAllVersions runs a filtered query over every stored version.
func (e *Environment) QueryAllVersions(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	if e.source == nil {
		return nil, fmt.Errorf("environment has no data source")
	}
	return e.source.QueryAllVersions(ctx, filters)
}

// RelationshipQuery restricts a relationship lookup.
type RelationshipQuery struct {
	// Type keeps only relationships of this relationship_type. Empty keeps
	// all.
	Type string

	// SourceOnly keeps only relationships where the object is the source.
	SourceOnly bool

	// TargetOnly keeps only relationships where the object is the target.
	TargetOnly bool
}

// Relationships returns all relationship records referencing id as source
// or target, subject to the query's restrictions.
func (e *Environment) Relationships(ctx context.Context, id string, q RelationshipQuery) ([]*stix2.Record, error) {
	if q.SourceOnly && q.TargetOnly {
		return nil, fmt.Errorf("relationship query cannot be both source-only and target-only")
	}

	filters := []stix2.Filter{stix2.NewFilter("type", stix2.OpEqual, "relationship")}
	if q.Type != "" {
		filters = append(filters, stix2.NewFilter("relationship_type", stix2.OpEqual, q.Type))
	}

	candidates, err := e.Query(ctx, filters)
	if err != nil {
		return nil, err
	}

	var out []*stix2.Record
	for _, rel := range candidates {
		isSource := rel.GetString("source_ref") == id
		isTarget := rel.GetString("target_ref") == id
		switch {
		case q.SourceOnly && isSource:
			out = append(out, rel)
		case q.TargetOnly && isTarget:
			out = append(out, rel)
		case !q.SourceOnly && !q.TargetOnly && (isSource || isTarget):
			out = append(out, rel)
		}
	}
	return out, nil
}

// Related resolves the neighbors of id: for every relationship touching it,
// the endpoint that is not id is fetched and returned, deduplicated by
// identifier. Unresolvable endpoints are skipped.
func (e *Environment) Related(ctx context.Context, id, relationshipType string) ([]*stix2.Record, error) {
	rels, err := e.Relationships(ctx, id, RelationshipQuery{Type: relationshipType})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*stix2.Record
	for _, rel := range rels {
		other := rel.GetString("target_ref")
		if other == id {
			other = rel.GetString("source_ref")
		}
		if other == "" || seen[other] {
			continue
		}
		seen[other] = true

		rec, err := e.Get(ctx, other)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CreatedBy resolves a record's created_by_ref. Returns ErrNotFound when the
// field is absent or the referenced identity is not stored; callers treat
// that as an absent result.
func (e *Environment) CreatedBy(ctx context.Context, rec *stix2.Record) (*stix2.Record, error) {
	ref := rec.GetString("created_by_ref")
	if ref == "" {
		return nil, ErrNotFound
	}
	return e.Get(ctx, ref)
}
