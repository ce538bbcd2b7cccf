package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"boardcore/internal/blob/blobtest"
	"boardcore/internal/blob/core"
)

func TestStoreContract(t *testing.T) {
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	blobtest.Run(t, s)
}

func TestGetReturnsPrivateCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Put(ctx, "k", bytes.NewReader([]byte("abc")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, rc, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	b[0] = 'z'
	_, rc, _ = s.Get(ctx, "k")
	again, _ := io.ReadAll(rc)
	if string(again) != "abc" {
		t.Fatalf("stored content mutated: %q", again)
	}
}
