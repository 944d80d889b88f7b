package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stix2 "github.com/threatline/stix2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stores.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
stores:
  - kind: filesystem
    path: ./data
  - kind: sqlite
    path: ./stix.db
  - kind: memory
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Stores, 3)
	assert.Equal(t, "filesystem", cfg.Stores[0].Kind)
	assert.Equal(t, "./data", cfg.Stores[0].Path)
	assert.Equal(t, "memory", cfg.Stores[2].Kind)
}

func TestLoadConfigRejectsUnknownKind(t *testing.T) {
	path := writeConfig(t, `
stores:
  - kind: redis
    path: localhost:6379
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoadConfigRequiresPath(t *testing.T) {
	path := writeConfig(t, `
stores:
  - kind: sqlite
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a path")
}

func TestLoadConfigRejectsEmptyStores(t *testing.T) {
	path := writeConfig(t, `stores: []`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stores")
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
stores:
  - kind: memory
databse: typo.db
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestOpenEnvironmentWritesToFirstStore(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{Stores: []StoreConfig{
		{Kind: "filesystem", Path: filepath.Join(tmp, "data")},
		{Kind: "memory"},
	}}

	env, closer, err := OpenEnvironment(cfg)
	require.NoError(t, err)
	defer closer()

	rec, err := stix2.NewMalware(stix2.Properties{
		"labels": []string{"ransomware"},
		"name":   "Cryptolocker",
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, env.Add(ctx, rec))

	// The write landed in the filesystem store.
	entries, err := os.ReadDir(filepath.Join(tmp, "data", "malware"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	got, err := env.Get(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, rec.ID(), got.ID())
}
