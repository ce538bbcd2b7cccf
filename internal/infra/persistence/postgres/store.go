// Package postgres keeps the board in memory and mirrors every committed
// transaction into a single JSONB snapshot row.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"boardcore/internal/infra/persistence/memory"
	"boardcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/boardcore?sslmode=disable"
)

const (
	createSnapshotTable = `CREATE TABLE IF NOT EXISTS board_snapshot (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		revision BIGINT NOT NULL,
		categories JSONB NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL
	)`
	selectSnapshot = `SELECT revision, categories FROM board_snapshot WHERE id = 1`
	// Older revisions never overwrite newer ones.
	upsertSnapshot = `INSERT INTO board_snapshot (id, revision, categories, saved_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET revision = EXCLUDED.revision, categories = EXCLUDED.categories, saved_at = EXCLUDED.saved_at
		WHERE board_snapshot.revision < EXCLUDED.revision`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a memory.Store whose committed state is written through to Postgres.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore connects to dsn (defaultDSN when empty), creates the snapshot table
// and hydrates from the stored row if there is one.
func NewStore(ctx context.Context, dsn string, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{Store: memory.NewStore(opts...), db: db}
	if err := s.bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrap(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createSnapshotTable); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	var (
		revision int64
		payload  []byte
	)
	err := s.db.QueryRowContext(ctx, selectSnapshot).Scan(&revision, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	var categories domain.Collection
	if err := json.Unmarshal(payload, &categories); err != nil {
		return fmt.Errorf("decode snapshot categories: %w", err)
	}
	s.ImportState(memory.Snapshot{Categories: categories, Revision: uint64(revision)})
	return nil
}

// RunInTransaction commits fn in memory and then writes the resulting state.
// A write failure is returned alongside the committed changes.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) ([]domain.Change, error) {
	changes, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil || len(changes) == 0 {
		return changes, err
	}
	if err := s.save(context.WithoutCancel(ctx)); err != nil {
		return changes, err
	}
	return changes, nil
}

func (s *Store) save(ctx context.Context) error {
	snapshot := s.ExportState()
	payload, err := json.Marshal(snapshot.Categories)
	if err != nil {
		return fmt.Errorf("encode snapshot categories: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertSnapshot, int64(snapshot.Revision), string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("save snapshot revision %d: %w", snapshot.Revision, err)
	}
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sql.Open used by NewStore and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
