// Package sqlite keeps the board in memory and writes every committed
// transaction through to a one-row SQLite snapshot table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"boardcore/internal/infra/persistence/memory"
	"boardcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "boardcore.db"

const (
	createSnapshotTable = `CREATE TABLE IF NOT EXISTS board_snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		revision INTEGER NOT NULL,
		categories TEXT NOT NULL,
		saved_at TEXT NOT NULL
	)`
	selectSnapshot = `SELECT revision, categories FROM board_snapshot WHERE id = 1`
	upsertSnapshot = `INSERT INTO board_snapshot (id, revision, categories, saved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET revision = excluded.revision, categories = excluded.categories, saved_at = excluded.saved_at
		WHERE board_snapshot.revision < excluded.revision`
)

// Store is a memory.Store whose committed state is written through to a
// SQLite file.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and hydrates from the
// stored snapshot.
func NewStore(path string, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises them anyway.
	db.SetMaxOpenConns(1)
	s := &Store{Store: memory.NewStore(opts...), db: db, path: path}
	if err := s.hydrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) hydrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSnapshotTable); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	var (
		revision int64
		payload  string
	)
	switch err := s.db.QueryRowContext(ctx, selectSnapshot).Scan(&revision, &payload); {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("load snapshot from %s: %w", s.path, err)
	}
	var categories domain.Collection
	if err := json.Unmarshal([]byte(payload), &categories); err != nil {
		return fmt.Errorf("decode snapshot categories: %w", err)
	}
	s.ImportState(memory.Snapshot{Categories: categories, Revision: uint64(revision)})
	return nil
}

// RunInTransaction commits fn in memory and then writes the resulting state.
// A write failure is returned alongside the committed changes.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) ([]domain.Change, error) {
	changes, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil || len(changes) == 0 {
		return changes, err
	}
	snapshot := s.ExportState()
	payload, err := json.Marshal(snapshot.Categories)
	if err != nil {
		return changes, fmt.Errorf("encode snapshot categories: %w", err)
	}
	savedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(context.WithoutCancel(ctx), upsertSnapshot, int64(snapshot.Revision), string(payload), savedAt); err != nil {
		return changes, fmt.Errorf("save snapshot revision %d: %w", snapshot.Revision, err)
	}
	return changes, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
