// Package board is the authoritative side of boardcore: it validates category
// requests and applies them transactionally to a persistent store.
package board

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"boardcore/internal/infra/persistence/memory"
	"boardcore/internal/observability"
	"boardcore/pkg/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder records every service call.
func WithMetricsRecorder(rec observability.MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer wraps every service call in a span.
func WithTracer(tracer observability.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithIDGenerator overrides identity assignment for new categories.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Service exposes transactional category operations over a persistent store.
type Service struct {
	store    domain.PersistentStore
	validate *validator.Validate
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	tracer   observability.Tracer
	newID    func() string
}

// NewService constructs a service backed by store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		validate: validator.New(),
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		tracer:   observability.NoopTracer{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// ListCategories returns the ordered collection.
func (s *Service) ListCategories(ctx context.Context) (domain.Collection, error) {
	var out domain.Collection
	err := s.observe(ctx, "list_categories", func(ctx context.Context) error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			out = v.ListCategories()
			return nil
		})
	})
	return out, err
}

// CreateCategory validates req and appends a new category.
func (s *Service) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.Category, error) {
	var created domain.Category
	err := s.observe(ctx, "create_category", func(ctx context.Context) error {
		if err := s.check(req); err != nil {
			return err
		}
		return s.run(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateCategory(domain.Category{
				ID:          s.newID(),
				Title:       req.Title,
				Description: req.Description,
				Color:       req.Color,
				Labels:      append([]string(nil), req.Labels...),
			})
			return err
		})
	})
	return created, err
}

// UpdateCategory applies a partial update.
func (s *Service) UpdateCategory(ctx context.Context, req domain.UpdateCategoryRequest) (domain.Category, error) {
	var updated domain.Category
	err := s.observe(ctx, "update_category", func(ctx context.Context) error {
		if err := s.check(req); err != nil {
			return err
		}
		return s.run(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateCategory(req.ID, func(c *domain.Category) error {
				*c = req.Apply(*c)
				return nil
			})
			return err
		})
	})
	return updated, err
}

// RepositionCategory moves a category. Targets outside [0, len) fail with
// domain.ErrInvalidPosition.
func (s *Service) RepositionCategory(ctx context.Context, req domain.RepositionCategoryRequest) (domain.Category, error) {
	var moved domain.Category
	err := s.observe(ctx, "reposition_category", func(ctx context.Context) error {
		if err := s.check(req); err != nil {
			return err
		}
		return s.run(ctx, func(tx domain.Transaction) error {
			var err error
			moved, err = tx.MoveCategory(req.ID, req.Position)
			return err
		})
	})
	return moved, err
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, req domain.DeleteCategoryRequest) (domain.DeleteReceipt, error) {
	var receipt domain.DeleteReceipt
	err := s.observe(ctx, "delete_category", func(ctx context.Context) error {
		if err := s.check(req); err != nil {
			return err
		}
		return s.run(ctx, func(tx domain.Transaction) error {
			n, err := tx.DeleteCategory(req.ID)
			receipt.Affected = n
			return err
		})
	})
	return receipt, err
}

func (s *Service) run(ctx context.Context, fn func(domain.Transaction) error) error {
	changes, err := s.store.RunInTransaction(ctx, fn)
	if err != nil {
		return err
	}
	for _, change := range changes {
		s.logger.Debug("board change committed",
			slog.String("entity", string(change.Entity)),
			slog.String("action", string(change.Action)))
	}
	return nil
}

func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return domain.ValidationError{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
	}
	return domain.ValidationError{Reason: err.Error()}
}

func (s *Service) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
	if err != nil {
		s.logger.Debug("board operation failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
	}
	return err
}
