package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"boardcore/internal/board"
	"boardcore/internal/mutation"
	"boardcore/internal/notify"
	"boardcore/internal/observability"
	"boardcore/internal/transport"
	"boardcore/pkg/domain"
)

func newLocal(t *testing.T, titles ...string) *transport.Local {
	t.Helper()
	seq := 0
	svc := board.NewInMemoryService(
		board.WithLogger(observability.DiscardLogger()),
		board.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("c%d", seq)
		}),
	)
	for _, title := range titles {
		if _, err := svc.CreateCategory(context.Background(), domain.CreateCategoryRequest{Title: title}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return transport.NewLocal(svc)
}

func TestBoardLoadMutateSettle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	local := newLocal(t, "A", "B", "C")
	notes := notify.NewBuffer(8)
	var phases []mutation.Phase
	b, err := New(local, local.Fetch, notes,
		WithRefreshTimeout(time.Second),
		WithPhaseObserver(func(ev mutation.Event) { phases = append(phases, ev.Phase) }),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer b.Close()

	if _, ok := b.Snapshot(); ok {
		t.Fatalf("expected empty cache before load")
	}
	list, err := b.Load(ctx)
	if err != nil || !slices.Equal(list.IDs(), []string{"c1", "c2", "c3"}) {
		t.Fatalf("load: %v %v", list.IDs(), err)
	}

	moved, err := b.Categories().Reposition().Run(ctx, domain.RepositionCategoryRequest{ID: "c3", Position: 0})
	if err != nil || moved.ID != "c3" {
		t.Fatalf("reposition: %+v %v", moved, err)
	}
	if err := b.Settle(ctx); err != nil {
		t.Fatalf("settle: %v", err)
	}
	snap, ok := b.Snapshot()
	if !ok || !slices.Equal(snap.IDs(), []string{"c3", "c1", "c2"}) {
		t.Fatalf("unexpected snapshot %v", snap.IDs())
	}
	if b.Cache().IsStale(domain.CategoriesKey) {
		t.Fatalf("expected refetch to clear staleness")
	}
	msgs := notes.Messages()
	if len(msgs) != 1 || msgs[0].Level != notify.LevelSuccess {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
	if len(phases) == 0 || phases[len(phases)-1] != mutation.PhaseSettled {
		t.Fatalf("unexpected phases %v", phases)
	}
}

func TestBoardRollbackReconciles(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	local := newLocal(t, "A", "B")
	notes := notify.NewBuffer(8)
	b, err := New(local, local.Fetch, notes)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer b.Close()
	if _, err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	local.FailNext(errors.New("offline"))
	if _, err := b.Categories().Delete().Run(ctx, domain.DeleteCategoryRequest{ID: "c1"}); err == nil {
		t.Fatalf("expected delete failure")
	}
	if err := b.Settle(ctx); err != nil {
		t.Fatalf("settle: %v", err)
	}
	snap, _ := b.Snapshot()
	if !slices.Equal(snap.IDs(), []string{"c1", "c2"}) {
		t.Fatalf("expected rollback, got %v", snap.IDs())
	}
	msgs := notes.Messages()
	if len(msgs) != 1 || msgs[0].Level != notify.LevelError {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestBoardWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	local := newLocal(t)
	b, err := New(local, local.Fetch, notify.NewBuffer(4))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer b.Close()
	ch, stop := b.Watch()
	defer stop()
	if _, err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	select {
	case got := <-ch:
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty collection, got %v", got)
		}
	case <-ctx.Done():
		t.Fatalf("no watch update")
	}
}

func TestNewValidation(t *testing.T) {
	local := newLocal(t)
	if _, err := New(local, nil, notify.NewBuffer(1)); err == nil {
		t.Fatalf("expected fetcher error")
	}
	if _, err := New(nil, local.Fetch, notify.NewBuffer(1)); err == nil {
		t.Fatalf("expected transport error")
	}
}
