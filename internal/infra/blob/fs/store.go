// Package fs stores blobs as plain files under a root directory. Each object
// has a JSON sidecar named after it holding content type, metadata and ETag.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"boardcore/internal/blob/core"
)

var _ core.Store = (*Store)(nil)

const (
	defaultRoot = "./archives"
	metaSuffix  = ".meta"
	tempPrefix  = ".tmp-"
)

// Store implements core.Store on the local filesystem.
type Store struct {
	root string
	now  func() time.Time
}

// New returns a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = defaultRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Driver returns core.DriverFilesystem.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the directory blobs are stored under.
func (s *Store) Root() string { return s.root }

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	WrittenAt   time.Time         `json:"written_at"`
}

func (m sidecar) info(key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         m.Size,
		ContentType:  m.ContentType,
		ETag:         m.ETag,
		Metadata:     core.CloneMetadata(m.Metadata),
		LastModified: m.WrittenAt,
	}
}

// locate maps key to its data file. Sidecar names are reserved.
func (s *Store) locate(key string) (string, error) {
	if err := core.ValidateKey(key); err != nil {
		return "", err
	}
	base := path.Base(key)
	if strings.HasSuffix(key, metaSuffix) || strings.HasPrefix(base, tempPrefix) {
		return "", fmt.Errorf("%w: %q uses a reserved name", core.ErrInvalidKey, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes the object and then its sidecar, each through a temp file and a
// rename.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	dataPath, err := s.locate(key)
	if err != nil {
		return core.Info{}, err
	}
	if _, err := os.Lstat(dataPath); err == nil {
		return core.Info{}, fmt.Errorf("blob %s: %w", key, core.ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Info{}, fmt.Errorf("blob %s: %w", key, err)
	}

	digest := sha256.New()
	var size int64
	err = writeAtomic(dataPath, func(w io.Writer) error {
		n, err := io.Copy(io.MultiWriter(w, digest), r)
		size = n
		return err
	})
	if err != nil {
		return core.Info{}, fmt.Errorf("blob %s: write data: %w", key, err)
	}

	meta := sidecar{
		ContentType: opts.ContentType,
		Metadata:    core.CloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(digest.Sum(nil)),
		Size:        size,
		WrittenAt:   s.now(),
	}
	err = writeAtomic(dataPath+metaSuffix, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	})
	if err != nil {
		_ = os.Remove(dataPath)
		return core.Info{}, fmt.Errorf("blob %s: write sidecar: %w", key, err)
	}
	return meta.info(key), nil
}

// Get opens the object; the caller closes the reader.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	dataPath, err := s.locate(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	meta, err := readSidecar(dataPath + metaSuffix)
	if err != nil {
		return core.Info{}, nil, wrapMissing(key, err)
	}
	f, err := os.Open(dataPath)
	if err != nil {
		return core.Info{}, nil, wrapMissing(key, err)
	}
	return meta.info(key), f, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	dataPath, err := s.locate(key)
	if err != nil {
		return core.Info{}, err
	}
	meta, err := readSidecar(dataPath + metaSuffix)
	if err != nil {
		return core.Info{}, wrapMissing(key, err)
	}
	return meta.info(key), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	dataPath, err := s.locate(key)
	if err != nil {
		return false, err
	}
	switch err := os.Remove(dataPath); {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("blob %s: %w", key, err)
	}
	if err := os.Remove(dataPath + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return true, fmt.Errorf("blob %s: remove sidecar: %w", key, err)
	}
	return true, nil
}

// List reports every object with a sidecar whose key starts with prefix.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var out []core.Info
	err := fs.WalkDir(os.DirFS(s.root), ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(name, metaSuffix) || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		key := strings.TrimSuffix(name, metaSuffix)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, err := readSidecar(filepath.Join(s.root, filepath.FromSlash(name)))
		if err != nil {
			return fmt.Errorf("blob %s: %w", key, err)
		}
		out = append(out, meta.info(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b core.Info) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func writeAtomic(dst string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), tempPrefix+"*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func readSidecar(p string) (sidecar, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, fmt.Errorf("decode sidecar %s: %w", filepath.Base(p), err)
	}
	return meta, nil
}

func wrapMissing(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	return fmt.Errorf("blob %s: %w", key, err)
}
