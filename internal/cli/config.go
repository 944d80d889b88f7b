package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/threatline/stix2/store"
	"github.com/threatline/stix2/store/filestore"
	"github.com/threatline/stix2/store/memstore"
	"github.com/threatline/stix2/store/sqlstore"
)

// StoreConfig describes one backing store.
type StoreConfig struct {
	// Kind selects the backend: "filesystem", "sqlite", or "memory".
	Kind string `yaml:"kind"`

	// Path is the directory (filesystem) or database file (sqlite) backing
	// the store. Ignored for memory stores.
	Path string `yaml:"path,omitempty"`
}

// Config is the stores.yaml layout. Reads fan out over every store; writes go
// to the first one.
type Config struct {
	Stores []StoreConfig `yaml:"stores"`
}

// LoadConfig reads and decodes a stores.yaml file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.Stores) == 0 {
		return nil, fmt.Errorf("config %s declares no stores", path)
	}
	for i, sc := range cfg.Stores {
		switch sc.Kind {
		case "filesystem", "sqlite":
			if sc.Path == "" {
				return nil, fmt.Errorf("store %d (%s) requires a path", i, sc.Kind)
			}
		case "memory":
		default:
			return nil, fmt.Errorf("store %d has unknown kind %q", i, sc.Kind)
		}
	}
	return &cfg, nil
}

// OpenEnvironment opens every configured store and binds them into an
// environment: a composite source over all stores, with the first store as
// the write sink. The returned closer releases every opened store.
func OpenEnvironment(cfg *Config) (*store.Environment, func() error, error) {
	var (
		sources []store.DataSource
		sink    store.DataSink
		closers []func() error
	)

	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for i, sc := range cfg.Stores {
		slog.Debug("opening store", "kind", sc.Kind, "path", sc.Path)
		var ds store.DataStore
		switch sc.Kind {
		case "filesystem":
			fs, err := filestore.New(sc.Path)
			if err != nil {
				_ = closeAll()
				return nil, nil, fmt.Errorf("opening filesystem store %s: %w", sc.Path, err)
			}
			ds = fs
		case "sqlite":
			db, err := sqlstore.Open(sc.Path)
			if err != nil {
				_ = closeAll()
				return nil, nil, fmt.Errorf("opening sqlite store %s: %w", sc.Path, err)
			}
			closers = append(closers, db.Close)
			ds = db
		case "memory":
			ds = memstore.New()
		default:
			_ = closeAll()
			return nil, nil, fmt.Errorf("unknown store kind %q", sc.Kind)
		}

		sources = append(sources, ds)
		if i == 0 {
			sink = ds
		}
	}

	env := store.NewEnvironment(store.NewCompositeSource(sources...), sink)
	return env, closeAll, nil
}

// openFromOptions loads the configured stores for a command invocation.
func openFromOptions(opts *RootOptions) (*store.Environment, func() error, error) {
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid store configuration", err)
	}
	env, closer, err := OpenEnvironment(cfg)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open stores", err)
	}
	return env, closer, nil
}
