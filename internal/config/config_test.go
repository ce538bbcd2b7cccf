package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StorageSQLite || cfg.Archive.Driver != ArchiveFS || cfg.RefreshTimeout != 30*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boardcore.yaml")
	doc := `
storage:
  driver: memory
archive:
  driver: s3
  s3:
    bucket: exports
    path_style: true
server:
  url: http://board.internal:9000
log:
  level: debug
  format: json
metrics: prometheus
refresh_timeout: 5s
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOARDCORE_TRACING", "otel")
	t.Setenv("BOARDCORE_ARCHIVE_S3_REGION", "eu-west-1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StorageMemory || cfg.Archive.S3.Bucket != "exports" || !cfg.Archive.S3.PathStyle {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Server.URL != "http://board.internal:9000" || cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.RefreshTimeout != 5*time.Second || cfg.Metrics != MetricsPrometheus || cfg.Log.Format != "json" {
		t.Fatalf("unexpected values %+v", cfg)
	}
	if cfg.Tracing != TracingOTel || cfg.Archive.S3.Region != "eu-west-1" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BOARDCORE_STORAGE_DRIVER":        "POSTGRES",
		"BOARDCORE_POSTGRES_DSN":          "postgres://db/board",
		"BOARDCORE_ARCHIVE_S3_PATH_STYLE": "true",
		"BOARDCORE_REFRESH_TIMEOUT":       "250ms",
		"BOARDCORE_SQLITE_PATH":           "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Storage.Driver != StoragePostgres || cfg.Storage.PostgresDSN != "postgres://db/board" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Storage.SQLitePath != "boardcore.db" {
		t.Fatalf("empty variables must not clear values")
	}
	if !cfg.Archive.S3.PathStyle || cfg.RefreshTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected values %+v", cfg)
	}

	env["BOARDCORE_REFRESH_TIMEOUT"] = "soon"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatalf("expected duration error")
	}
	env["BOARDCORE_REFRESH_TIMEOUT"] = "1s"
	env["BOARDCORE_ARCHIVE_S3_PATH_STYLE"] = "maybe"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatalf("expected bool error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown storage", func(c *Config) { c.Storage.Driver = "mongo" }, `unknown driver "mongo"`},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = StoragePostgres }, "postgres_dsn"},
		{"s3 without bucket", func(c *Config) { c.Archive.Driver = ArchiveS3 }, "bucket"},
		{"fs without root", func(c *Config) { c.Archive.FSRoot = "" }, "fs_root"},
		{"unknown archive", func(c *Config) { c.Archive.Driver = "ftp" }, `"ftp"`},
		{"unknown metrics", func(c *Config) { c.Metrics = "statsd" }, "statsd"},
		{"unknown tracing", func(c *Config) { c.Tracing = "zipkin" }, "zipkin"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "xml"},
		{"negative timeout", func(c *Config) { c.RefreshTimeout = -time.Second }, "refresh_timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("storage: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected decode error")
	}
	t.Setenv("BOARDCORE_STORAGE_DRIVER", "mongo")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected validation error")
	}
}
