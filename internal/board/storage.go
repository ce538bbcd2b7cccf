package board

import (
	"context"
	"fmt"
	"io"

	"boardcore/internal/config"
	"boardcore/internal/infra/persistence/memory"
	"boardcore/internal/infra/persistence/postgres"
	"boardcore/internal/infra/persistence/sqlite"
	"boardcore/pkg/domain"
)

// OpenPersistentStore selects a backend from cfg.
func OpenPersistentStore(ctx context.Context, cfg config.Storage) (domain.PersistentStore, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewStore(), nil
	case config.StorageSQLite, "":
		return sqlite.NewStore(cfg.SQLitePath)
	case config.StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// CloseStore releases store resources when the backend holds any.
func CloseStore(store domain.PersistentStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
