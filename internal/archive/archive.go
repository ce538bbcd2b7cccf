// Package archive writes point-in-time exports of the category collection to
// a blob store and reads them back.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"boardcore/internal/blob/core"
	"boardcore/internal/observability"
	"boardcore/pkg/domain"
)

const (
	prefix      = "archives/"
	timeLayout  = "20060102T150405.000000000Z"
	contentType = "application/json"
)

// ErrInvalidKey is returned for archive keys that cannot form a blob path.
var ErrInvalidKey = errors.New("archive: invalid key")

// Document is the JSON payload of one export.
type Document struct {
	Key        string            `json:"key"`
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Categories domain.Collection `json:"categories"`
}

// Entry describes a stored export.
type Entry struct {
	Object     string    `json:"object"`
	Key        string    `json:"key"`
	ExportedAt time.Time `json:"exported_at"`
	Size       int64     `json:"size_bytes"`
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Archiver exports collections under archives/<key>/<timestamp>.json.
type Archiver struct {
	store  core.Store
	now    func() time.Time
	logger *slog.Logger
}

// New returns an Archiver writing to store.
func New(store core.Store, opts ...Option) *Archiver {
	a := &Archiver{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: observability.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Export writes collection as a new archive object and returns its entry.
func (a *Archiver) Export(ctx context.Context, key string, collection domain.Collection) (Entry, error) {
	if err := checkKey(key); err != nil {
		return Entry{}, err
	}
	if collection == nil {
		collection = domain.Collection{}
	}
	at := a.now().UTC()
	doc := Document{Key: key, ExportedAt: at, Count: len(collection), Categories: collection.Clone()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Entry{}, fmt.Errorf("encode archive: %w", err)
	}
	object := prefix + key + "/" + at.Format(timeLayout) + ".json"
	info, err := a.store.Put(ctx, object, bytes.NewReader(data), core.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"key": key, "count": strconv.Itoa(doc.Count)},
	})
	if err != nil {
		return Entry{}, fmt.Errorf("write archive %s: %w", object, err)
	}
	a.logger.Info("archive exported", "key", key, "object", object, "categories", doc.Count, "driver", a.store.Driver())
	return Entry{Object: object, Key: key, ExportedAt: at, Size: info.Size}, nil
}

// List returns the exports stored for key, oldest first.
func (a *Archiver) List(ctx context.Context, key string) ([]Entry, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	infos, err := a.store.List(ctx, prefix+key+"/")
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimSuffix(strings.TrimPrefix(info.Key, prefix+key+"/"), ".json")
		at, err := time.Parse(timeLayout, name)
		if err != nil {
			a.logger.Warn("skipping foreign archive object", "object", info.Key)
			continue
		}
		entries = append(entries, Entry{Object: info.Key, Key: key, ExportedAt: at, Size: info.Size})
	}
	return entries, nil
}

// Load reads the export stored at object.
func (a *Archiver) Load(ctx context.Context, object string) (Document, error) {
	_, rc, err := a.store.Get(ctx, object)
	if err != nil {
		return Document{}, fmt.Errorf("read archive %s: %w", object, err)
	}
	defer func() { _ = rc.Close() }()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode archive %s: %w", object, err)
	}
	if doc.Categories == nil {
		doc.Categories = domain.Collection{}
	}
	return doc, nil
}

// Latest loads the most recent export for key.
func (a *Archiver) Latest(ctx context.Context, key string) (Document, error) {
	entries, err := a.List(ctx, key)
	if err != nil {
		return Document{}, err
	}
	if len(entries) == 0 {
		return Document{}, fmt.Errorf("archive %s: %w", key, core.ErrNotFound)
	}
	return a.Load(ctx, entries[len(entries)-1].Object)
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" || key == "." || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
