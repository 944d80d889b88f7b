// Package filestore provides a filesystem-backed data store.
//
// Layout: one directory per record type under the root, one file per stored
// version, named by the identifier's UUID portion plus a modified-derived
// disambiguator:
//
//	root/
//	    indicator/
//	        01234567-89ab-cdef-0123-456789abcdef--1483228800000000.json
//	    malware/
//	        ...
//
// Each file holds the canonical serialization of one version. A version is
// written to a temporary file and renamed into place, so concurrent readers
// never observe a partially written version.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	stix2 "github.com/threatline/stix2"
	"github.com/threatline/stix2/ident"
	"github.com/threatline/stix2/store"
)

// Store is a filesystem-backed data source and sink rooted at one directory.
// A single writer at a time is the contract; concurrent readers are safe.
type Store struct {
	root string
}

// New opens (creating if needed) a filesystem store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// versionFilename is collision-free across versions of one identifier: the
// UUID portion plus the modified timestamp in microseconds.
func versionFilename(rec *stix2.Record) string {
	uuidPart := strings.TrimPrefix(rec.ID(), rec.Type()+ident.Separator)
	return fmt.Sprintf("%s--%d.json", uuidPart, rec.Modified().UnixMicro())
}

// Add persists one version. The canonical bytes are durable on disk before
// Add returns; re-adding an existing version is a no-op.
func (s *Store) Add(ctx context.Context, rec *stix2.Record) error {
	dir := filepath.Join(s.root, rec.Type())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create type directory: %w", err)
	}

	final := filepath.Join(dir, versionFilename(rec))
	if _, err := os.Stat(final); err == nil {
		return nil
	}

	data, err := rec.Serialize()
	if err != nil {
		return err
	}

	// Write the whole version to a temp file, then rename: the version
	// becomes visible atomically or not at all.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write version: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync version: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close version: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish version: %w", err)
	}
	return nil
}

// Get returns the latest version of id, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*stix2.Record, error) {
	versions, err := s.AllVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	return versions[len(versions)-1], nil
}

// AllVersions returns every stored version of id ordered by modified, or
// store.ErrNotFound.
func (s *Store) AllVersions(ctx context.Context, id string) ([]*stix2.Record, error) {
	typeTag := ident.TypeOf(id)
	if typeTag == "" {
		return nil, store.ErrNotFound
	}
	uuidPart := strings.TrimPrefix(id, typeTag+ident.Separator)

	dir := filepath.Join(s.root, typeTag)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read type directory: %w", err)
	}

	var versions []*stix2.Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), uuidPart+ident.Separator) {
			continue
		}
		rec, err := s.readVersion(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		versions = append(versions, rec)
	}

	if len(versions) == 0 {
		return nil, store.ErrNotFound
	}
	store.SortByModified(versions)
	return versions, nil
}

// Query returns the latest version of every object satisfying all filters.
func (s *Store) Query(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	var out []*stix2.Record
	for _, rec := range store.LatestPerID(all) {
		if stix2.MatchAll(rec, filters) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// QueryAllVersions returns every stored version satisfying all filters.
func (s *Store) QueryAllVersions(ctx context.Context, filters []stix2.Filter) ([]*stix2.Record, error) {
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	var out []*stix2.Record
	for _, rec := range all {
		if stix2.MatchAll(rec, filters) {
			out = append(out, rec)
		}
	}
	store.SortByModified(out)
	return out, nil
}

func (s *Store) readAll() ([]*stix2.Record, error) {
	typeDirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}

	var out []*stix2.Record
	for _, typeDir := range typeDirs {
		if !typeDir.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, typeDir.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read type directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			rec, err := s.readVersion(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) readVersion(path string) (*stix2.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read version %s: %w", path, err)
	}
	rec, err := stix2.Parse(data, stix2.WithAllowCustom())
	if err != nil {
		return nil, fmt.Errorf("parse version %s: %w", path, err)
	}
	return rec, nil
}
