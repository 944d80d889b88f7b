package stix2

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeIndicator(t *testing.T) {
	now := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

	ind, err := NewIndicator(Properties{
		"type":       "indicator",
		"id":         indicatorID,
		"labels":     []string{"malicious-activity"},
		"pattern":    "[file:hashes.MD5 = 'd41d8cd98f00b204e9800998ecf8427e']",
		"created":    now,
		"modified":   now,
		"valid_from": epoch,
	})
	require.NoError(t, err)

	g := goldie.New(t)
	data, err := ind.Serialize()
	require.NoError(t, err)
	g.Assert(t, "indicator", data)
}

func TestSerializeMalware(t *testing.T) {
	now := time.Date(2016, 5, 12, 8, 17, 27, 0, time.UTC)

	mal, err := NewMalware(Properties{
		"type":     "malware",
		"id":       malwareID,
		"created":  now,
		"modified": now,
		"labels":   []string{"ransomware"},
		"name":     "Cryptolocker",
	})
	require.NoError(t, err)

	g := goldie.New(t)
	data, err := mal.Serialize()
	require.NoError(t, err)
	g.Assert(t, "malware", data)
}

func TestSerializeRelationship(t *testing.T) {
	now := time.Date(2016, 4, 6, 20, 6, 37, 0, time.UTC)

	rel, err := NewRelationshipProps(Properties{
		"type":              "relationship",
		"id":                relationshipID,
		"created":           now,
		"modified":          now,
		"relationship_type": "indicates",
		"source_ref":        indicatorID,
		"target_ref":        malwareID,
	})
	require.NoError(t, err)

	g := goldie.New(t)
	data, err := rel.Serialize()
	require.NoError(t, err)
	g.Assert(t, "relationship", data)
}

func TestSerializeBundle(t *testing.T) {
	opts := deterministic()

	ind, err := NewIndicator(indicatorProps(), opts...)
	require.NoError(t, err)
	mal, err := NewMalware(malwareProps(), opts...)
	require.NoError(t, err)
	rel, err := NewRelationship(indicatorID, "indicates", malwareID, opts...)
	require.NoError(t, err)

	bundle, err := NewBundle([]*Record{ind, mal, rel}, opts...)
	require.NoError(t, err)

	g := goldie.New(t)
	data, err := bundle.Serialize()
	require.NoError(t, err)
	g.Assert(t, "bundle", data)
}

func TestSerializeIsDeterministic(t *testing.T) {
	ind, err := NewIndicator(indicatorProps(), deterministic()...)
	require.NoError(t, err)

	first, err := ind.Serialize()
	require.NoError(t, err)
	second, err := ind.Serialize()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSerializeSortsNestedKeys(t *testing.T) {
	od, err := NewObservedData(Properties{
		"first_observed":  "2017-01-01T00:00:00Z",
		"last_observed":   "2017-01-01T00:00:00Z",
		"number_observed": 1,
		"objects": map[string]any{
			"0": map[string]any{
				"type": "file",
				"name": "evil.exe",
			},
		},
	})
	require.NoError(t, err)

	out := od.String()
	assert.Less(t, strings.Index(out, `"name"`), strings.Index(out, `"type": "file"`))
	assert.Contains(t, out, `"number_observed": 1`)
}

func TestSerializeNoHTMLEscaping(t *testing.T) {
	ind, err := NewIndicator(Properties{
		"labels":  []string{"malicious-activity"},
		"pattern": "[url:value = 'http://evil.example.com/?a=1&b=<x>']",
	})
	require.NoError(t, err)

	out := ind.String()
	assert.Contains(t, out, "a=1&b=<x>")
}
