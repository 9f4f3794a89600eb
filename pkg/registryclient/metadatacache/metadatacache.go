// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metadatacache persists the resolver's LRU metadata cache
// (§4.D/§4.G) across process invocations, under the XDG cache directory,
// so a second `install` in the same project warms instantly. It is a
// latency enrichment only: a missing, cold, or corrupt database behaves
// exactly like an empty cache (§B.6), never a correctness dependency.
package metadatacache

import (
	"database/sql"
	"embed"
	"encoding/json"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	skherrors "github.com/skillhive/skillhive/pkg/errors"
	"github.com/skillhive/skillhive/pkg/logger"
	"github.com/skillhive/skillhive/pkg/registry"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a durable, cross-invocation mirror of the metadata cache.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// brings its schema up to date via goose migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, skherrors.NewFileSystemError("opening metadata cache database "+path, err)
	}

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, skherrors.NewConfigurationError("setting metadata cache migration dialect", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, skherrors.NewFileSystemError("migrating metadata cache database", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return skherrors.NewFileSystemError("closing metadata cache database", err)
	}
	return nil
}

// Get returns the cached SkillVersion for nameVersion, or (nil, false) on
// a miss or any read/decode failure — a corrupt row is treated as absent
// rather than surfaced as an error.
func (s *Store) Get(nameVersion string) (*registry.SkillVersion, bool) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM skill_versions WHERE name_version = ?`, nameVersion).Scan(&payload)
	if err != nil {
		return nil, false
	}

	var version registry.SkillVersion
	if err := json.Unmarshal([]byte(payload), &version); err != nil {
		logger.Warnf("metadata cache row for %q is corrupt, treating as miss: %v", nameVersion, err)
		return nil, false
	}
	return &version, true
}

// Put persists version under nameVersion, overwriting any prior entry.
// Write failures are logged and swallowed: this store never causes an
// install or search to fail.
func (s *Store) Put(nameVersion string, version *registry.SkillVersion) {
	payload, err := json.Marshal(version)
	if err != nil {
		logger.Warnf("metadata cache failed to marshal %q: %v", nameVersion, err)
		return
	}

	_, err = s.db.Exec(
		`INSERT INTO skill_versions (name_version, payload) VALUES (?, ?)
		 ON CONFLICT(name_version) DO UPDATE SET payload = excluded.payload, cached_at = CURRENT_TIMESTAMP`,
		nameVersion, payload,
	)
	if err != nil {
		logger.Warnf("metadata cache failed to persist %q: %v", nameVersion, err)
	}
}

// Clear empties the store, for test isolation and `skh config cache-clear`.
func (s *Store) Clear() {
	if _, err := s.db.Exec(`DELETE FROM skill_versions`); err != nil {
		logger.Warnf("metadata cache clear failed: %v", err)
	}
}
