package ident

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesValidPrefixedUUID(t *testing.T) {
	id := New("indicator")
	require.True(t, strings.HasPrefix(id, "indicator--"))

	_, err := uuid.Parse(strings.TrimPrefix(id, "indicator--"))
	require.NoError(t, err)
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New("malware")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestCheckPrefix(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		typeTag string
		ok      bool
	}{
		{"match", "indicator--01234567-89ab-cdef-0123-456789abcdef", "indicator", true},
		{"wrong prefix", "my-prefix--01234567-89ab-cdef-0123-456789abcdef", "indicator", false},
		{"bare type", "indicator", "indicator", false},
		{"prefix of prefix", "indicator--x", "indicato", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPrefix(tt.id, tt.typeTag)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var pe *PrefixError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.typeTag, pe.TypeTag)
		})
	}
}

func TestSequentialGenerator(t *testing.T) {
	gen := Sequential()
	assert.Equal(t, "indicator--00000000-0000-0000-0000-000000000001", gen.NewID("indicator"))
	assert.Equal(t, "malware--00000000-0000-0000-0000-000000000002", gen.NewID("malware"))
	for i := 0; i < 256; i++ {
		gen.NewID("tool")
	}
	assert.Equal(t, "tool--00000000-0000-0000-0000-000000000103", gen.NewID("tool"))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, "indicator", TypeOf("indicator--abc"))
	assert.Equal(t, "", TypeOf("no-separator"))
}
