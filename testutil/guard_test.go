package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInternalImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"boardcore/internal/cache", true},
		{"example.com/some/internal/deep/path", true},
		{"boardcore/pkg/domain", false},
		{"example.com/internal", false},
		{"notinternal", false},
		{"", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestInfrastructureImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"boardcore/internal/infra/persistence/sqlite", true},
		{"boardcore/internal/api", true},
		{"boardcore/internal/board", true},
		{"boardcore/internal/blob/core", true},
		{"modernc.org/sqlite", true},
		{"modernc.org/sqlite/lib", true},
		{"modernc.org/sqlitex", false},
		{"github.com/jackc/pgx/v5/stdlib", true},
		{"github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"github.com/go-chi/chi/v5", true},
		{"boardcore/internal/cache", false},
		{"boardcore/pkg/wire", false},
		{"boardcore/internal/transport", false},
		{"boardcore/internal/observability", false},
		{"github.com/oklog/ulid/v2", false},
	}
	for _, c := range cases {
		if got := InfrastructureImportForbidden(c.in); got != c.want {
			t.Fatalf("InfrastructureImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAnyOf(t *testing.T) {
	pred := AnyOf(func(s string) bool { return s == "a" }, func(s string) bool { return s == "b" })
	if !pred("a") || !pred("b") || pred("c") {
		t.Fatalf("unexpected AnyOf results")
	}
	if AnyOf()("a") {
		t.Fatalf("empty AnyOf should match nothing")
	}
}

func writeGo(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "ok.go", "package tmp\nimport (\n\t\"fmt\"\n\talias \"context\"\n)\nvar _ = fmt.Sprint\nvar _ alias.Context\n")
	writeGo(t, dir, "bad.go", "package tmp\nimport _ \"boardcore/internal/infra/blob/fs\"\n")
	writeGo(t, dir, "bad_test.go", "package tmp\nimport _ \"modernc.org/sqlite\"\n")
	writeGo(t, dir, "notes.txt", "import \"modernc.org/sqlite\"")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeGo(t, filepath.Join(dir, "sub"), "sub.go", "package sub\nimport _ \"github.com/go-chi/chi/v5\"\n")

	viols, err := directImportViolations(dir, InfrastructureImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "boardcore/internal/infra/blob/fs (in bad.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "nothing forbidden")

	writeGo(t, dir, "broken.go", "package tmp\nimport (")
	if _, err := directImportViolations(dir, InfrastructureImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), InfrastructureImportForbidden); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestTransitiveDependencyViolations(t *testing.T) {
	orig := goListDeps
	t.Cleanup(func() { goListDeps = orig })

	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nboardcore/internal/cache\n\nmodernc.org/sqlite\n"), nil
	}
	viols, _, err := transitiveDependencyViolations("./...", InfrastructureImportForbidden)
	if err != nil || len(viols) != 1 || viols[0] != "modernc.org/sqlite" {
		t.Fatalf("unexpected violations %v %v", viols, err)
	}

	goListDeps = func(string) ([]byte, error) { return []byte("no go files"), errors.New("exit status 1") }
	if _, out, err := transitiveDependencyViolations(".", InfrastructureImportForbidden); err == nil || string(out) != "no go files" {
		t.Fatalf("expected go list failure, got %v %q", err, out)
	}
}

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, args ...any) { c.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	var c captureFatal
	failIfViolations(&c, "direct imports", "reason", nil)
	if c.msg != "" {
		t.Fatalf("unexpected failure %q", c.msg)
	}
	failIfViolations(&c, "direct imports", "client core", []string{"a", "b"})
	if !strings.Contains(c.msg, "forbidden direct imports detected (client core)") || !strings.Contains(c.msg, "a\nb") {
		t.Fatalf("unexpected message %q", c.msg)
	}
}
