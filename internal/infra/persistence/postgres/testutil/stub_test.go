package testutil

import (
	"context"
	"testing"
	"time"
)

const upsert = `INSERT INTO board_snapshot (id, revision, categories, saved_at)
	VALUES (1, $1, $2, $3) ON CONFLICT (id) DO UPDATE SET revision = EXCLUDED.revision`

func TestStubAppliesRevisionGuard(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()

	now := time.Now().UTC()
	for _, rev := range []int64{2, 1, 3} {
		if _, err := db.ExecContext(ctx, upsert, rev, `[]`, now); err != nil {
			t.Fatalf("upsert %d: %v", rev, err)
		}
	}
	if conn.Writes != 2 || conn.Skipped != 1 {
		t.Fatalf("expected 2 writes and 1 skip, got %d/%d", conn.Writes, conn.Skipped)
	}
	row, ok := conn.Stored()
	if !ok || row.Revision != 3 || string(row.Categories) != "[]" || !row.SavedAt.Equal(now) {
		t.Fatalf("unexpected row %+v", row)
	}

	var revision int64
	var payload []byte
	if err := db.QueryRowContext(ctx, "SELECT revision, categories FROM board_snapshot WHERE id = 1").Scan(&revision, &payload); err != nil {
		t.Fatalf("select: %v", err)
	}
	if revision != 3 || string(payload) != "[]" {
		t.Fatalf("unexpected scan %d %s", revision, payload)
	}
}

func TestStubFailureSwitches(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()

	conn.FailPing = true
	if err := db.PingContext(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailPing = false
	conn.FailQuery = true
	if err := db.QueryRowContext(ctx, "SELECT revision, categories FROM board_snapshot").Scan(new(int64), new([]byte)); err == nil {
		t.Fatalf("expected query failure")
	}
	conn.FailQuery = false
	if _, err := db.ExecContext(ctx, "DELETE FROM board_snapshot"); err == nil {
		t.Fatalf("expected unsupported statement")
	}
	if _, err := db.ExecContext(ctx, upsert, "one", `[]`, time.Now()); err == nil {
		t.Fatalf("expected revision type error")
	}
}
