// Package config loads boardcore settings from an optional YAML file overlaid
// with BOARDCORE_* environment variables.
//
//	BOARDCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	BOARDCORE_SQLITE_PATH: path to sqlite file (default ./boardcore.db)
//	BOARDCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	BOARDCORE_ARCHIVE_DRIVER: memory|fs|s3 (default fs)
//	BOARDCORE_ARCHIVE_FS_ROOT: root directory of the fs archive driver
//	BOARDCORE_ARCHIVE_S3_BUCKET / _REGION / _ENDPOINT / _PATH_STYLE
//	BOARDCORE_ARCHIVE_S3_ACCESS_KEY_ID / _SECRET_ACCESS_KEY
//	BOARDCORE_LISTEN_ADDR: address served by `boardctl serve`
//	BOARDCORE_SERVER_URL: base URL used by client commands
//	BOARDCORE_LOG_LEVEL: debug|info|warn|error
//	BOARDCORE_LOG_FORMAT: text|json
//	BOARDCORE_METRICS: none|expvar|prometheus
//	BOARDCORE_TRACING: none|json|otel
//	BOARDCORE_REFRESH_TIMEOUT: Go duration bounding cache refetches
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / demos)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// ArchiveDriver identifies the blob backend archives are written to.
type ArchiveDriver string

const (
	ArchiveMemory ArchiveDriver = "memory"
	ArchiveFS     ArchiveDriver = "fs"
	ArchiveS3     ArchiveDriver = "s3"
)

// Metrics exporters.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Tracing exporters.
const (
	TracingNone = "none"
	TracingJSON = "json"
	TracingOTel = "otel"
)

// Config is the full boardcore configuration.
type Config struct {
	Storage        Storage       `yaml:"storage"`
	Archive        Archive       `yaml:"archive"`
	Server         Server        `yaml:"server"`
	Log            Log           `yaml:"log"`
	Metrics        string        `yaml:"metrics"`
	Tracing        string        `yaml:"tracing"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
}

// Storage selects the authoritative persistence backend.
type Storage struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

// Archive selects where board exports are written.
type Archive struct {
	Driver ArchiveDriver `yaml:"driver"`
	FSRoot string        `yaml:"fs_root"`
	S3     S3            `yaml:"s3"`
}

// S3 holds S3-compatible object storage settings.
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// Server configures the HTTP API and the address clients dial.
type Server struct {
	ListenAddr string `yaml:"listen_addr"`
	URL        string `yaml:"url"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: Storage{Driver: StorageSQLite, SQLitePath: "boardcore.db"},
		Archive: Archive{Driver: ArchiveFS, FSRoot: "archives", S3: S3{Region: "us-east-1"}},
		Server:  Server{ListenAddr: ":8080", URL: "http://localhost:8080"},
		Log:     Log{Level: "info", Format: "text"},
		Metrics: MetricsNone,
		Tracing: TracingNone,

		RefreshTimeout: 30 * time.Second,
	}
}

// Load reads path (when non-empty) over the defaults, applies the process
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays BOARDCORE_* variables resolved through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup("BOARDCORE_" + name); ok && v != "" {
			*dst = v
		}
	}
	var storage, archive string
	str("STORAGE_DRIVER", &storage)
	if storage != "" {
		c.Storage.Driver = StorageDriver(strings.ToLower(storage))
	}
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("ARCHIVE_DRIVER", &archive)
	if archive != "" {
		c.Archive.Driver = ArchiveDriver(strings.ToLower(archive))
	}
	str("ARCHIVE_FS_ROOT", &c.Archive.FSRoot)
	str("ARCHIVE_S3_BUCKET", &c.Archive.S3.Bucket)
	str("ARCHIVE_S3_REGION", &c.Archive.S3.Region)
	str("ARCHIVE_S3_ENDPOINT", &c.Archive.S3.Endpoint)
	str("ARCHIVE_S3_ACCESS_KEY_ID", &c.Archive.S3.AccessKeyID)
	str("ARCHIVE_S3_SECRET_ACCESS_KEY", &c.Archive.S3.SecretAccessKey)
	if v, ok := lookup("BOARDCORE_ARCHIVE_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BOARDCORE_ARCHIVE_S3_PATH_STYLE: %w", err)
		}
		c.Archive.S3.PathStyle = b
	}
	str("LISTEN_ADDR", &c.Server.ListenAddr)
	str("SERVER_URL", &c.Server.URL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("METRICS", &c.Metrics)
	str("TRACING", &c.Tracing)
	if v, ok := lookup("BOARDCORE_REFRESH_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BOARDCORE_REFRESH_TIMEOUT: %w", err)
		}
		c.RefreshTimeout = d
	}
	return nil
}

// Validate rejects unknown drivers and incomplete backend settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage: postgres driver requires postgres_dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}
	switch c.Archive.Driver {
	case ArchiveMemory:
	case ArchiveFS:
		if c.Archive.FSRoot == "" {
			errs = append(errs, errors.New("archive: fs driver requires fs_root"))
		}
	case ArchiveS3:
		if c.Archive.S3.Bucket == "" {
			errs = append(errs, errors.New("archive: s3 driver requires bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive: unknown driver %q", c.Archive.Driver))
	}
	switch c.Metrics {
	case "", MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("metrics: unknown exporter %q", c.Metrics))
	}
	switch c.Tracing {
	case "", TracingNone, TracingJSON, TracingOTel:
	default:
		errs = append(errs, fmt.Errorf("tracing: unknown exporter %q", c.Tracing))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}
	if c.RefreshTimeout < 0 {
		errs = append(errs, errors.New("refresh_timeout must not be negative"))
	}
	return errors.Join(errs...)
}
