// Package blob opens the archive blob store selected by configuration.
package blob

import (
	"context"
	"fmt"

	"boardcore/internal/blob/core"
	"boardcore/internal/config"
	"boardcore/internal/infra/blob/fs"
	"boardcore/internal/infra/blob/memory"
	"boardcore/internal/infra/blob/s3"
)

// Store is re-exported so callers need not import core directly.
type Store = core.Store

// Open constructs the blob store for cfg.Driver. An empty driver means fs.
func Open(ctx context.Context, cfg config.Archive) (core.Store, error) {
	switch cfg.Driver {
	case config.ArchiveFS, "":
		return fs.New(cfg.FSRoot)
	case config.ArchiveMemory:
		return memory.New(), nil
	case config.ArchiveS3:
		return s3.New(ctx, s3.Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}
