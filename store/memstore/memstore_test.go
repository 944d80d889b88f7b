package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stix2 "github.com/threatline/stix2"
	"github.com/threatline/stix2/ident"
	"github.com/threatline/stix2/store"
	"github.com/threatline/stix2/timestamp"
)

func record(t *testing.T, typeTag string, props stix2.Properties, at time.Time) *stix2.Record {
	t.Helper()
	rec, err := stix2.New(typeTag, props, stix2.WithClock(timestamp.Fixed(at)), stix2.WithIDGenerator(ident.Sequential()))
	require.NoError(t, err)
	return rec
}

func indicatorAt(t *testing.T, id string, at time.Time) *stix2.Record {
	t.Helper()
	props := stix2.Properties{
		"labels":  []string{"malicious-activity"},
		"pattern": "[ipv4-addr:value = '198.51.100.1']",
	}
	if id != "" {
		props["id"] = id
	}
	return record(t, "indicator", props, at)
}

func TestAddGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec := indicatorAt(t, "", time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Add(ctx, rec))

	got, err := s.Get(ctx, rec.ID())
	require.NoError(t, err)
	assert.True(t, rec.Equal(got))
}

func TestGetUnknownIsNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "indicator--00000000-0000-0000-0000-00000000ffff")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.AllVersions(context.Background(), "indicator--00000000-0000-0000-0000-00000000ffff")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestVersionsOrderedAndLatestWins(t *testing.T) {
	ctx := context.Background()
	s := New()

	const id = "indicator--01234567-89ab-cdef-0123-456789abcdef"
	v1 := indicatorAt(t, id, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC))
	v2 := indicatorAt(t, id, time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC))

	// Insert newest first; ordering must come from the modified timestamp.
	require.NoError(t, s.Add(ctx, v2))
	require.NoError(t, s.Add(ctx, v1))

	versions, err := s.AllVersions(ctx, id)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.True(t, versions[0].Modified().Before(versions[1].Modified()))

	latest, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, v2.Modified(), latest.Modified())
}

func TestReAddingVersionIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec := indicatorAt(t, "", time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Add(ctx, rec))
	require.NoError(t, s.Add(ctx, rec))

	versions, err := s.AllVersions(ctx, rec.ID())
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestQueryLatestPerID(t *testing.T) {
	ctx := context.Background()
	s := New()

	const id = "indicator--01234567-89ab-cdef-0123-456789abcdef"
	v1 := indicatorAt(t, id, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC))
	v2 := indicatorAt(t, id, time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC))
	mal := record(t, "malware", stix2.Properties{
		"labels": []string{"ransomware"},
		"name":   "Cryptolocker",
	}, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC))

	for _, rec := range []*stix2.Record{v1, v2, mal} {
		require.NoError(t, s.Add(ctx, rec))
	}

	indicators, err := s.Query(ctx, []stix2.Filter{stix2.NewFilter("type", stix2.OpEqual, "indicator")})
	require.NoError(t, err)
	require.Len(t, indicators, 1)
	assert.Equal(t, v2.Modified(), indicators[0].Modified())

	all, err := s.QueryAllVersions(ctx, []stix2.Filter{stix2.NewFilter("type", stix2.OpEqual, "indicator")})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := s.Query(ctx, []stix2.Filter{stix2.NewFilter("type", stix2.OpEqual, "vulnerability")})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// Query results come back ordered by identifier, the convention shared by
// every backend, regardless of insertion order or modified timestamps.
func TestQueryOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := New()

	ids := []string{
		"indicator--cccccccc-0000-0000-0000-000000000000",
		"indicator--aaaaaaaa-0000-0000-0000-000000000000",
		"indicator--bbbbbbbb-0000-0000-0000-000000000000",
	}
	// Modified timestamps deliberately disagree with identifier order.
	for i, id := range ids {
		rec := indicatorAt(t, id, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Duration(i)*time.Hour))
		require.NoError(t, s.Add(ctx, rec))
	}

	results, err := s.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.Less(t, results[i-1].ID(), results[i].ID())
	}
}

func TestQueryIdempotence(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 3; i++ {
		rec := indicatorAt(t, "", time.Date(2017, 1, 1, i, 0, 0, 0, time.UTC))
		require.NoError(t, s.Add(ctx, rec))
	}

	filters := []stix2.Filter{stix2.NewFilter("type", stix2.OpEqual, "indicator")}
	first, err := s.Query(ctx, filters)
	require.NoError(t, err)
	second, err := s.Query(ctx, filters)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]))
	}
}
