// Package core defines the object storage contract board archives are written
// through. Backends live under internal/infra/blob.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
	"time"
)

// Driver names a backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

var (
	// ErrNotFound is wrapped by Get and Head when a key holds no object.
	ErrNotFound = errors.New("blobstore: not found")
	// ErrExists is wrapped by Put when the key is taken.
	ErrExists = errors.New("blobstore: already exists")
	// ErrInvalidKey is wrapped by every operation given a key ValidateKey rejects.
	ErrInvalidKey = errors.New("blobstore: invalid key")
)

// PutOptions carries the optional attributes of a new object.
type PutOptions struct {
	ContentType string
	// Metadata is small, flat and case-insensitive; backends may lowercase keys.
	Metadata map[string]string
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a small S3-shaped object store. Objects are immutable: Put never
// overwrites, and List returns objects sorted by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports whether an object was removed.
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ValidateKey accepts slash separated relative keys without empty, "." or
// ".." segments.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q must be relative and slash separated", ErrInvalidKey, key)
	}
	for _, segment := range strings.Split(key, "/") {
		switch segment {
		case "", ".", "..":
			return fmt.Errorf("%w: %q has segment %q", ErrInvalidKey, key, segment)
		}
	}
	return nil
}

// CloneMetadata copies user metadata so callers never share maps with a store.
func CloneMetadata(in map[string]string) map[string]string {
	return maps.Clone(in)
}
