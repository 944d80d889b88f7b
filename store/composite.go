package store

import (
	"context"
	"errors"

	stix2 "github.com/threatline/stix2"
)

// CompositeSource aggregates several sources behind one query surface.
//
// Results are merged and deduplicated by (id, modified): a version present
// in two constituents is returned once. The composite holds non-owning
// references; constituent lifetimes are the caller's responsibility and
// must exceed the composite's.
type CompositeSource struct {
	sources []DataSource
}

// NewCompositeSource aggregates the given sources.
func NewCompositeSource(sources ...DataSource) *CompositeSource {
	return &CompositeSource{sources: sources}
}

// AddSource appends another constituent source.
func (c *CompositeSource) AddSource(src DataSource) {
	c.sources = append(c.sources, src)
}

// Get returns the version of id with the latest modified timestamp across
// all constituents, or ErrNotFound if no constituent holds it.
func (c *CompositeSource) Get(ctx context.Context, id string) (*stix2.Record, error) {
	var best *stix2.Record
	for _, src := range c.sources {
		rec, err := src.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if best == nil || rec.Modified().After(best.Modified()) {
			best = rec
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

// AllVersions returns the union of every constituent's versions of id,
// deduplicated by (id, modified) and ordered by modified.
func (c *CompositeSource) AllVersions(ctx context.Context, id string) ([]*stix2.Record, error) {
	var merged []*stix2.Record
	seen := make(map[string]bool)
	found := false

	for _, src := range c.sources {
		versions, err := src.AllVersions(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		for _, rec := range versions {
			key := VersionKey(rec)
			if !seen[key] {
				seen[key] = true
				merged = append(merged, rec)
			}
		}
	}

	if !found {
		return nil, ErrNotFound
	}
	SortByModified(merged)
	return merged, nil
}

// Query merges the constituents' latest-version query results, deduplicated
// by (id, modified) and reduced to the latest version per identifier.
func (c *CompositeSource) Query(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	merged, err := c.queryAll(ctx, filters, false)
	if err != nil {
		return nil, err
	}
	return LatestPerID(merged), nil
}

// QueryAllVersions merges every matching version from every constituent,
// deduplicated by (id, modified).
func (c *CompositeSource) QueryAllVersions(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	merged, err := c.queryAll(ctx, filters, true)
	if err != nil {
		return nil, err
	}
	SortByModified(merged)
	return merged, nil
}

func (c *CompositeSource) queryAll(ctx context.Context, filters []stix2.Filter, allVersions bool) ([]*stix2.Record, error) {
	var merged []*stix2.Record
	seen := make(map[string]bool)

	for _, src := range c.sources {
		var (
			results []*stix2.Record
			err     error
		)
		if allVersions {
			results, err = src.QueryAllVersions(ctx, filters)
		} else {
			results, err = src.Query(ctx, filters)
		}
		if err != nil {
			return nil, err
		}
		for _, rec := range results {
			key := VersionKey(rec)
			if !seen[key] {
				seen[key] = true
				merged = append(merged, rec)
			}
		}
	}
	return merged, nil
}
