// Package store persists the track catalog in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ambimix/mixer"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite catalog for one owner. Built-in tracks are shared by
// every owner; user tracks are only visible to the owner that created them.
type DB struct {
	db     *sql.DB
	path   string
	owner  string
	logger *slog.Logger
	mu     sync.RWMutex
}

var _ mixer.Store = (*DB)(nil)

// Open opens or creates the catalog database at path. When owner is empty
// the owner id persisted in the database is used, or a new one is generated
// and persisted on first open.
func Open(path, owner string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS _meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create meta table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tracks (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			source_ref TEXT NOT NULL,
			builtin    INTEGER NOT NULL DEFAULT 0,
			owner_id   TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS tracks_owner ON tracks(owner_id);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tracks table: %w", err)
	}

	d := &DB{
		db:     db,
		path:   path,
		logger: slog.With("component", "store"),
	}

	if owner == "" {
		owner, err = d.persistedOwner()
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	d.owner = owner

	d.logger.Debug("Catalog opened", slog.String("path", path), slog.String("owner", owner))
	return d, nil
}

// persistedOwner returns the stored owner id, creating one if needed.
func (d *DB) persistedOwner() (string, error) {
	var owner string
	err := d.db.QueryRow(`SELECT value FROM _meta WHERE key = 'owner_id'`).Scan(&owner)
	if err == nil && owner != "" {
		return owner, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read owner id: %w", err)
	}

	owner = uuid.NewString()
	if _, err := d.db.Exec(`INSERT OR REPLACE INTO _meta (key, value) VALUES ('owner_id', ?)`, owner); err != nil {
		return "", fmt.Errorf("persist owner id: %w", err)
	}
	d.logger.Info("Generated owner id", slog.String("owner", owner))
	return owner, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// Owner returns the owner id user tracks are scoped to.
func (d *DB) Owner() string {
	return d.owner
}

// List returns built-in tracks followed by the owner's tracks in creation order.
func (d *DB) List(ctx context.Context) ([]mixer.Track, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, source_ref, builtin, created_at
		FROM tracks
		WHERE builtin = 1 OR owner_id = ?
		ORDER BY builtin DESC, created_at ASC, rowid ASC`, d.owner)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []mixer.Track
	for rows.Next() {
		var (
			t       mixer.Track
			builtin int
			created int64
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.SourceRef, &builtin, &created); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		t.BuiltIn = builtin == 1
		t.CreatedAt = time.Unix(0, created)
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// Create inserts a user track owned by the current owner.
func (d *DB) Create(ctx context.Context, name, sourceRef string) (mixer.Track, error) {
	name = strings.TrimSpace(name)
	sourceRef = strings.TrimSpace(sourceRef)
	if name == "" || sourceRef == "" {
		return mixer.Track{}, fmt.Errorf("create track: name and source are required: %w", mixer.ErrInvalidInput)
	}

	t := mixer.Track{
		ID:        uuid.NewString(),
		Name:      name,
		SourceRef: sourceRef,
		CreatedAt: time.Now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tracks (id, name, source_ref, builtin, owner_id, created_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		t.ID, t.Name, t.SourceRef, d.owner, t.CreatedAt.UnixNano())
	if err != nil {
		return mixer.Track{}, fmt.Errorf("create track: %w", err)
	}

	d.logger.Info("Track created", slog.String("id", t.ID), slog.String("name", t.Name))
	return t, nil
}

// Delete removes one of the owner's tracks. Built-in tracks and tracks of
// other owners cannot be deleted.
func (d *DB) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		builtin int
		owner   string
	)
	err := d.db.QueryRowContext(ctx, `SELECT builtin, owner_id FROM tracks WHERE id = ?`, id).Scan(&builtin, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete track %s: %w", id, mixer.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete track %s: %w", id, err)
	}
	if builtin == 1 {
		return fmt.Errorf("delete built-in track %s: %w", id, mixer.ErrForbidden)
	}
	if owner != d.owner {
		return fmt.Errorf("delete track %s owned by another user: %w", id, mixer.ErrForbidden)
	}

	if _, err := d.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete track %s: %w", id, err)
	}

	d.logger.Info("Track deleted", slog.String("id", id))
	return nil
}
