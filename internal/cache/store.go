// Package cache implements the client side store of named collections. Values
// are cloned on the way in and out, every write bumps a per-key generation,
// and background refreshes only install their result when the generation they
// observed at start is still current.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"boardcore/pkg/domain"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads the authoritative collection for a key.
type Fetcher func(ctx context.Context) (domain.Collection, error)

// Transform computes the next collection from the current one. present is
// false when nothing is cached for the key yet. Transforms run while the store
// is locked and must not call back into the store.
type Transform func(current domain.Collection, present bool) domain.Collection

// ErrNoFetcher is returned by Load and Refresh for keys without a fetcher.
var ErrNoFetcher = errors.New("cache: no fetcher registered")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache: store closed")

type entry struct {
	value      domain.Collection
	present    bool
	stale      bool
	generation uint64
	updatedAt  time.Time
}

type refresh struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stats reports cumulative store activity.
type Stats struct {
	Writes          int64 `json:"writes"`
	Invalidations   int64 `json:"invalidations"`
	Refreshes       int64 `json:"refreshes"`
	RefreshFailures int64 `json:"refresh_failures"`
	Discarded       int64 `json:"discarded"`
	Cancelled       int64 `json:"cancelled"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger used for refresh diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithRefreshTimeout bounds every background refresh. Zero disables the bound.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.refreshTimeout = d
	}
}

// Store is a process-wide keyed store of collections. It is safe for
// concurrent use.
type Store struct {
	mu        sync.Mutex
	entries   map[domain.ResourceKey]*entry
	fetchers  map[domain.ResourceKey]Fetcher
	refreshes map[domain.ResourceKey]*refresh
	watchers  map[domain.ResourceKey]map[chan domain.Collection]struct{}
	closed    bool

	flight singleflight.Group
	wg     sync.WaitGroup
	ctx    context.Context
	stop   context.CancelFunc

	logger         *slog.Logger
	nowFn          func() time.Time
	refreshTimeout time.Duration

	writes          atomic.Int64
	invalidations   atomic.Int64
	refreshCount    atomic.Int64
	refreshFailures atomic.Int64
	discarded       atomic.Int64
	cancelled       atomic.Int64
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	ctx, stop := context.WithCancel(context.Background())
	s := &Store{
		entries:        make(map[domain.ResourceKey]*entry),
		fetchers:       make(map[domain.ResourceKey]Fetcher),
		refreshes:      make(map[domain.ResourceKey]*refresh),
		watchers:       make(map[domain.ResourceKey]map[chan domain.Collection]struct{}),
		ctx:            ctx,
		stop:           stop,
		logger:         slog.Default(),
		nowFn:          func() time.Time { return time.Now().UTC() },
		refreshTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterFetcher installs the authoritative loader for key.
func (s *Store) RegisterFetcher(key domain.ResourceKey, fetch Fetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fetch == nil {
		delete(s.fetchers, key)
		return
	}
	s.fetchers[key] = fetch
}

func (s *Store) entryLocked(key domain.ResourceKey) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

// Get returns a copy of the cached collection.
func (s *Store) Get(key domain.ResourceKey) (domain.Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.present {
		return nil, false
	}
	return e.value.Clone(), true
}

// Set replaces the collection for key with the result of transform in a
// single write.
func (s *Store) Set(key domain.ResourceKey, transform Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(key)
	next := transform(e.value.Clone(), e.present)
	s.installLocked(key, e, next)
	s.writes.Add(1)
}

func (s *Store) installLocked(key domain.ResourceKey, e *entry, value domain.Collection) {
	if value == nil {
		value = domain.Collection{}
	}
	e.value = value.Clone()
	e.present = true
	e.generation++
	e.updatedAt = s.nowFn()
	s.publishLocked(key, e.value)
}

// CancelPending stops any background refresh running for key and waits for it
// to return. Refresh results that arrive afterwards are discarded.
func (s *Store) CancelPending(ctx context.Context, key domain.ResourceKey) error {
	s.mu.Lock()
	s.entryLocked(key).generation++
	r := s.refreshes[key]
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	r.cancel()
	s.cancelled.Add(1)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cancel pending %s: %w", key, ctx.Err())
	}
}

// Invalidate marks key stale and schedules a background refetch. A refresh
// already running for key is cancelled and replaced.
func (s *Store) Invalidate(key domain.ResourceKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(key)
	e.stale = true
	e.generation++
	s.invalidations.Add(1)

	fetch := s.fetchers[key]
	if fetch == nil || s.closed {
		return
	}
	if prev := s.refreshes[key]; prev != nil {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	if s.refreshTimeout > 0 {
		ctx, cancel = withTimeout(ctx, cancel, s.refreshTimeout)
	}
	r := &refresh{cancel: cancel, done: make(chan struct{})}
	s.refreshes[key] = r
	s.wg.Add(1)
	go s.runRefresh(ctx, key, r, e.generation, fetch)
}

func withTimeout(parent context.Context, parentCancel context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		cancel()
		parentCancel()
	}
}

func (s *Store) runRefresh(ctx context.Context, key domain.ResourceKey, r *refresh, generation uint64, fetch Fetcher) {
	defer s.wg.Done()
	defer close(r.done)
	defer func() {
		s.mu.Lock()
		if s.refreshes[key] == r {
			delete(s.refreshes, key)
		}
		s.mu.Unlock()
		r.cancel()
	}()

	s.refreshCount.Add(1)
	value, err := fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("cache refresh cancelled", slog.String("key", string(key)))
			return
		}
		s.refreshFailures.Add(1)
		s.logger.Warn("cache refresh failed", slog.String("key", string(key)), slog.String("error", err.Error()))
		return
	}
	if ctx.Err() != nil {
		s.discarded.Add(1)
		return
	}
	s.installIfCurrent(key, value, generation)
}

func (s *Store) installIfCurrent(key domain.ResourceKey, value domain.Collection, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(key)
	if e.generation != generation {
		s.discarded.Add(1)
		s.logger.Debug("cache refresh discarded",
			slog.String("key", string(key)),
			slog.Uint64("observed_generation", generation),
			slog.Uint64("current_generation", e.generation))
		return false
	}
	s.installLocked(key, e, value)
	e.stale = false
	return true
}

// Load returns the cached collection, fetching it first when it is absent or
// stale. Concurrent loads of the same key share one fetch.
func (s *Store) Load(ctx context.Context, key domain.ResourceKey) (domain.Collection, error) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && e.present && !e.stale {
		out := e.value.Clone()
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()
	return s.fetchShared(ctx, key)
}

// Refresh fetches key synchronously regardless of staleness.
func (s *Store) Refresh(ctx context.Context, key domain.ResourceKey) (domain.Collection, error) {
	s.mu.Lock()
	s.entryLocked(key).stale = true
	s.mu.Unlock()
	return s.fetchShared(ctx, key)
}

func (s *Store) fetchShared(ctx context.Context, key domain.ResourceKey) (domain.Collection, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	fetch := s.fetchers[key]
	s.mu.Unlock()
	if fetch == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoFetcher, key)
	}

	v, err, _ := s.flight.Do(string(key), func() (any, error) {
		s.mu.Lock()
		generation := s.entryLocked(key).generation
		s.mu.Unlock()
		s.refreshCount.Add(1)
		value, err := fetch(ctx)
		if err != nil {
			s.refreshFailures.Add(1)
			return nil, err
		}
		s.installIfCurrent(key, value, generation)
		return value, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	if current, ok := s.Get(key); ok {
		return current, nil
	}
	return v.(domain.Collection).Clone(), nil
}

// IsStale reports whether key has been invalidated since its last fetch.
func (s *Store) IsStale(key domain.ResourceKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.stale
}

// UpdatedAt returns the time of the last write to key.
func (s *Store) UpdatedAt(key domain.ResourceKey) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.present {
		return time.Time{}, false
	}
	return e.updatedAt, true
}

// Wait blocks until no background refresh is running for key.
func (s *Store) Wait(ctx context.Context, key domain.ResourceKey) error {
	for {
		s.mu.Lock()
		r := s.refreshes[key]
		s.mu.Unlock()
		if r == nil {
			return nil
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Watch returns a channel receiving the latest collection after every write
// to key. Slow readers only observe the most recent value. The returned
// function stops the feed.
func (s *Store) Watch(key domain.ResourceKey) (<-chan domain.Collection, func()) {
	ch := make(chan domain.Collection, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	set, ok := s.watchers[key]
	if !ok {
		set = make(map[chan domain.Collection]struct{})
		s.watchers[key] = set
	}
	set[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.watchers[key][ch]; ok {
				delete(s.watchers[key], ch)
				close(ch)
			}
		})
	}
}

func (s *Store) publishLocked(key domain.ResourceKey, value domain.Collection) {
	for ch := range s.watchers[key] {
		select {
		case ch <- value.Clone():
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- value.Clone():
		default:
		}
	}
}

// Stats returns a point-in-time copy of the activity counters.
func (s *Store) Stats() Stats {
	return Stats{
		Writes:          s.writes.Load(),
		Invalidations:   s.invalidations.Load(),
		Refreshes:       s.refreshCount.Load(),
		RefreshFailures: s.refreshFailures.Load(),
		Discarded:       s.discarded.Load(),
		Cancelled:       s.cancelled.Load(),
	}
}

// Close cancels background refreshes, waits for them and closes watchers.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, r := range s.refreshes {
		r.cancel()
	}
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, set := range s.watchers {
		for ch := range set {
			close(ch)
		}
		delete(s.watchers, key)
	}
}
