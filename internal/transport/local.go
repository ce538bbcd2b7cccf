package transport

import (
	"context"
	"sync"
	"time"

	"boardcore/pkg/domain"
)

// Service is the authoritative board a Local transport calls.
type Service interface {
	ListCategories(ctx context.Context) (domain.Collection, error)
	CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.Category, error)
	UpdateCategory(ctx context.Context, req domain.UpdateCategoryRequest) (domain.Category, error)
	RepositionCategory(ctx context.Context, req domain.RepositionCategoryRequest) (domain.Category, error)
	DeleteCategory(ctx context.Context, req domain.DeleteCategoryRequest) (domain.DeleteReceipt, error)
}

// LocalOption configures a Local transport.
type LocalOption func(*Local)

// WithLatency delays every call by d, simulating a network round trip.
func WithLatency(d time.Duration) LocalOption {
	return func(l *Local) { l.latency = d }
}

// Local calls an in-process board directly. It supports injected failures for
// demos and tests.
type Local struct {
	svc     Service
	latency time.Duration

	mu       sync.Mutex
	failures []error
	calls    int
}

// NewLocal wraps svc.
func NewLocal(svc Service, opts ...LocalOption) *Local {
	l := &Local{svc: svc}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FailNext makes the next mutation call return err without reaching the
// board. Calls queue in order.
func (l *Local) FailNext(err error) {
	l.mu.Lock()
	l.failures = append(l.failures, err)
	l.mu.Unlock()
}

// Calls returns the number of mutation calls received.
func (l *Local) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Fetch returns the authoritative collection. Injected failures do not apply.
func (l *Local) Fetch(ctx context.Context) (domain.Collection, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.svc.ListCategories(ctx)
}

func (l *Local) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.Category, error) {
	if err := l.enter(ctx); err != nil {
		return domain.Category{}, err
	}
	return l.svc.CreateCategory(ctx, req)
}

func (l *Local) UpdateCategory(ctx context.Context, req domain.UpdateCategoryRequest) (domain.Category, error) {
	if err := l.enter(ctx); err != nil {
		return domain.Category{}, err
	}
	return l.svc.UpdateCategory(ctx, req)
}

func (l *Local) RepositionCategory(ctx context.Context, req domain.RepositionCategoryRequest) (domain.Category, error) {
	if err := l.enter(ctx); err != nil {
		return domain.Category{}, err
	}
	return l.svc.RepositionCategory(ctx, req)
}

func (l *Local) DeleteCategory(ctx context.Context, req domain.DeleteCategoryRequest) (domain.DeleteReceipt, error) {
	if err := l.enter(ctx); err != nil {
		return domain.DeleteReceipt{}, err
	}
	return l.svc.DeleteCategory(ctx, req)
}

func (l *Local) enter(ctx context.Context) error {
	l.mu.Lock()
	l.calls++
	var injected error
	if len(l.failures) > 0 {
		injected = l.failures[0]
		l.failures = l.failures[1:]
	}
	l.mu.Unlock()
	if err := l.wait(ctx); err != nil {
		return err
	}
	return injected
}

func (l *Local) wait(ctx context.Context) error {
	if l.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(l.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
