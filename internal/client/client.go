// Package client assembles the client side of a board: the shared cache, the
// categories fetcher and the optimistic mutation controller.
package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"boardcore/internal/cache"
	"boardcore/internal/mutation"
	"boardcore/internal/observability"
	"boardcore/pkg/domain"
)

// Option configures a Board.
type Option func(*settings)

type settings struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	tracer         observability.Tracer
	refreshTimeout time.Duration
	observer       func(mutation.Event)
}

// WithLogger sets the logger shared by the cache and the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMetricsRecorder records transport outcomes of every mutation.
func WithMetricsRecorder(rec observability.MetricsRecorder) Option {
	return func(s *settings) { s.metrics = rec }
}

// WithTracer traces every mutation transport call.
func WithTracer(tracer observability.Tracer) Option {
	return func(s *settings) { s.tracer = tracer }
}

// WithRefreshTimeout bounds background refetches started by invalidation.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *settings) { s.refreshTimeout = d }
}

// WithPhaseObserver receives every mutation phase transition.
func WithPhaseObserver(fn func(mutation.Event)) Option {
	return func(s *settings) { s.observer = fn }
}

// Board is a client view of one category board.
type Board struct {
	cache      *cache.Store
	categories *mutation.Controller
}

// New builds a Board. fetcher loads the authoritative collection; transport
// performs mutations; notifier receives settlement messages.
func New(transport mutation.Transport, fetcher cache.Fetcher, notifier mutation.Notifier, opts ...Option) (*Board, error) {
	if fetcher == nil {
		return nil, errors.New("client: fetcher cannot be nil")
	}
	s := settings{logger: observability.DiscardLogger()}
	for _, opt := range opts {
		opt(&s)
	}
	cacheOpts := []cache.Option{cache.WithLogger(s.logger)}
	if s.refreshTimeout > 0 {
		cacheOpts = append(cacheOpts, cache.WithRefreshTimeout(s.refreshTimeout))
	}
	store := cache.New(cacheOpts...)
	store.RegisterFetcher(domain.CategoriesKey, fetcher)

	ctrlOpts := []mutation.Option{
		mutation.WithLogger(s.logger),
		mutation.WithMetricsRecorder(s.metrics),
		mutation.WithTracer(s.tracer),
	}
	if s.observer != nil {
		ctrlOpts = append(ctrlOpts, mutation.WithPhaseObserver(s.observer))
	}
	ctrl, err := mutation.NewController(store, transport, notifier, ctrlOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Board{cache: store, categories: ctrl}, nil
}

// Categories returns the category mutation controller.
func (b *Board) Categories() *mutation.Controller { return b.categories }

// Cache exposes the underlying cache.
func (b *Board) Cache() *cache.Store { return b.cache }

// Load returns the category collection, fetching it when absent or stale.
func (b *Board) Load(ctx context.Context) (domain.Collection, error) {
	return b.cache.Load(ctx, domain.CategoriesKey)
}

// Snapshot returns the cached collection without fetching.
func (b *Board) Snapshot() (domain.Collection, bool) {
	return b.cache.Get(domain.CategoriesKey)
}

// Watch streams the collection after every cache write.
func (b *Board) Watch() (<-chan domain.Collection, func()) {
	return b.cache.Watch(domain.CategoriesKey)
}

// Settle waits for every mutation to settle and for the reconciling refetch
// to finish.
func (b *Board) Settle(ctx context.Context) error {
	if err := b.categories.Drain(ctx); err != nil {
		return err
	}
	return b.cache.Wait(ctx, domain.CategoriesKey)
}

// Close stops background refreshes.
func (b *Board) Close() {
	b.cache.Close()
}
