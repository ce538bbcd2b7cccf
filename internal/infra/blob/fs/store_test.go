package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"boardcore/internal/blob/blobtest"
	"boardcore/internal/blob/core"
)

func TestStoreContract(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	blobtest.Run(t, s)
}

func TestPutWritesDataAndSidecar(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Put(context.Background(), "dir/file.json", bytes.NewReader([]byte("{}")), core.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	for _, name := range []string{"file.json", "file.json" + metaSuffix} {
		if _, err := os.Stat(filepath.Join(root, "dir", name)); err != nil {
			t.Fatalf("expected %s on disk: %v", name, err)
		}
	}
	entries, _ := os.ReadDir(filepath.Join(root, "dir"))
	if len(entries) != 2 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestRejectsUnsafeKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "  ", "../escape", "/abs", "a//b", "x" + metaSuffix, "dir/" + tempPrefix + "x"} {
		if _, err := s.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for %q, got %v", key, err)
		}
	}
	if entries, _ := os.ReadDir(s.Root()); len(entries) != 0 {
		t.Fatalf("rejected keys left %d entries behind", len(entries))
	}
}

func TestCorruptSidecar(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if _, err := s.Put(ctx, "a", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a"+metaSuffix), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Head(ctx, "a"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := s.List(ctx, ""); err == nil {
		t.Fatalf("expected list to surface decode error")
	}
}
