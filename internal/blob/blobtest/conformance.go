// Package blobtest holds behaviour checks shared by every blob backend.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"boardcore/internal/blob/core"
)

// Run exercises store against the core.Store contract. The store must be empty.
func Run(t *testing.T, store core.Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "boards/main/a.json", bytes.NewReader([]byte(`{"a":1}`)), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"revision": "3"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "boards/main/a.json" || info.Size != 7 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "boards/main/a.json", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := store.Get(ctx, "boards/main/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"a":1}` {
		t.Fatalf("unexpected payload %q", body)
	}
	if got.ContentType != "application/json" || got.Metadata["revision"] != "3" {
		t.Fatalf("metadata not preserved: %+v", got)
	}

	head, err := store.Head(ctx, "boards/main/a.json")
	if err != nil || head.Size != 7 {
		t.Fatalf("head: %+v %v", head, err)
	}
	head.Metadata["revision"] = "mutated"
	again, _ := store.Head(ctx, "boards/main/a.json")
	if again.Metadata["revision"] != "3" {
		t.Fatalf("metadata shared with caller")
	}

	if _, _, err := store.Get(ctx, "boards/main/missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	if _, err := store.Head(ctx, "boards/main/missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}

	for _, key := range []string{"boards/main/b.json", "boards/other/c.json"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("{}")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "boards/main/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "boards/main/a.json" || list[1].Key != "boards/main/b.json" {
		t.Fatalf("unexpected listing %+v", list)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 blobs, got %d %v", len(all), err)
	}

	for _, key := range []string{"", "/abs", "boards/../escape"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for %q, got %v", key, err)
		}
		if _, err := store.Head(ctx, key); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey from head for %q, got %v", key, err)
		}
	}

	deleted, err := store.Delete(ctx, "boards/main/a.json")
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v %v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "boards/main/a.json")
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got %v %v", deleted, err)
	}
}
