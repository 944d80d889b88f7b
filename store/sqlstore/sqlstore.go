// Package sqlstore provides a SQLite-backed data store.
//
// Each record version is one row holding the canonical serialization;
// lookups by identifier and type run in SQL, filter evaluation runs
// in-process over the parsed records so filter semantics are identical
// across all backends.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	stix2 "github.com/threatline/stix2"
	"github.com/threatline/stix2/store"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed data source and sink.
//
// The database runs in WAL mode so readers proceed during a write; SQLite
// supports one writer at a time, which matches the single-writer contract.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and applies the
// schema. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Single connection avoids SQLITE_BUSY between our own statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add inserts one version. The insert is a single statement, so the version
// becomes visible atomically; ON CONFLICT DO NOTHING makes re-adding an
// existing (id, modified) version a no-op.
func (s *Store) Add(ctx context.Context, rec *stix2.Record) error {
	body, err := rec.Serialize()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (type, id, modified_us, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id, modified_us) DO NOTHING
	`,
		rec.Type(),
		rec.ID(),
		rec.Modified().UnixMicro(),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("add object: %w", err)
	}
	return nil
}

// Get returns the latest version of id, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*stix2.Record, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT body FROM objects
		WHERE id = ?
		ORDER BY modified_us DESC
		LIMIT 1
	`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return parseBody(body)
}

// AllVersions returns every stored version of id ordered by modified, or
// store.ErrNotFound.
func (s *Store) AllVersions(ctx context.Context, id string) ([]*stix2.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM objects
		WHERE id = ?
		ORDER BY modified_us ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	versions, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, store.ErrNotFound
	}
	return versions, nil
}

// Query returns the latest version of every object satisfying all filters.
func (s *Store) Query(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	// Latest version per identifier in SQL, filter evaluation in-process.
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.body
		FROM objects o
		JOIN (
			SELECT id, MAX(modified_us) AS modified_us
			FROM objects
			GROUP BY id
		) latest ON o.id = latest.id AND o.modified_us = latest.modified_us
		ORDER BY o.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	candidates, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	var out []*stix2.Record
	for _, rec := range candidates {
		if stix2.MatchAll(rec, filters) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// QueryAllVersions returns every stored version satisfying all filters.
func (s *Store) QueryAllVersions(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM objects
		ORDER BY modified_us ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	candidates, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	var out []*stix2.Record
	for _, rec := range candidates {
		if stix2.MatchAll(rec, filters) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func scanRecords(rows *sql.Rows) ([]*stix2.Record, error) {
	var out []*stix2.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		rec, err := parseBody(body)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return out, nil
}

func parseBody(body string) (*stix2.Record, error) {
	rec, err := stix2.Parse(body, stix2.WithAllowCustom())
	if err != nil {
		return nil, fmt.Errorf("parse stored object: %w", err)
	}
	return rec, nil
}
