// Package mutation applies optimistic updates to the client cache. Every
// operation snapshots the cached collection, installs a speculative next
// state, dispatches the transport call, rolls back on failure and always
// invalidates the collection once the outcome is known.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"boardcore/internal/cache"
	"boardcore/internal/observability"
	"boardcore/pkg/domain"

	"github.com/oklog/ulid/v2"
)

// Store is the cache contract the controller relies on.
type Store interface {
	Get(key domain.ResourceKey) (domain.Collection, bool)
	Set(key domain.ResourceKey, transform cache.Transform)
	CancelPending(ctx context.Context, key domain.ResourceKey) error
	Invalidate(key domain.ResourceKey)
}

// Transport performs the server calls. Implementations return the confirmed
// entity or receipt, or an error describing the failure.
type Transport interface {
	CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.Category, error)
	UpdateCategory(ctx context.Context, req domain.UpdateCategoryRequest) (domain.Category, error)
	RepositionCategory(ctx context.Context, req domain.RepositionCategoryRequest) (domain.Category, error)
	DeleteCategory(ctx context.Context, req domain.DeleteCategoryRequest) (domain.DeleteReceipt, error)
}

// Notifier presents settlement messages to the user.
type Notifier interface {
	NotifySuccess(message string)
	NotifyError(message string)
}

// Event describes one phase transition of one invocation.
type Event struct {
	ID        string
	Operation string
	Phase     Phase
	Err       error
}

// Option configures a Controller.
type Option func(*Controller)

// WithResourceKey overrides the cache key the controller mutates.
func WithResourceKey(key domain.ResourceKey) Option {
	return func(c *Controller) { c.key = key }
}

// WithEntity overrides the entity type named in notifications.
func WithEntity(entity domain.EntityType) Option {
	return func(c *Controller) { c.entity = entity }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsRecorder records the transport outcome of every invocation.
func WithMetricsRecorder(rec observability.MetricsRecorder) Option {
	return func(c *Controller) {
		if rec != nil {
			c.metrics = rec
		}
	}
}

// WithTracer wraps every transport call in a span.
func WithTracer(tracer observability.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithPhaseObserver is called synchronously on every phase transition.
func WithPhaseObserver(fn func(Event)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithIDGenerator overrides invocation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithClock overrides the time source used for latency measurements.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.nowFn = now
		}
	}
}

// Controller owns the optimistic mutations of one entity type.
type Controller struct {
	store     Store
	transport Transport
	notifier  Notifier
	key       domain.ResourceKey
	entity    domain.EntityType

	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	tracer   observability.Tracer
	observer func(Event)
	newID    func() string
	nowFn    func() time.Time

	mu     sync.Mutex
	active int
	// idle is closed whenever active is zero and replaced when it leaves zero.
	idle chan struct{}

	create     *Operation[domain.CreateCategoryRequest, domain.Category]
	update     *Operation[domain.UpdateCategoryRequest, domain.Category]
	reposition *Operation[domain.RepositionCategoryRequest, domain.Category]
	remove     *Operation[domain.DeleteCategoryRequest, domain.DeleteReceipt]
}

// NewController wires a controller for the category collection.
func NewController(store Store, transport Transport, notifier Notifier, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.New("mutation: store cannot be nil")
	}
	if transport == nil {
		return nil, errors.New("mutation: transport cannot be nil")
	}
	if notifier == nil {
		return nil, errors.New("mutation: notifier cannot be nil")
	}
	c := &Controller{
		store:     store,
		transport: transport,
		notifier:  notifier,
		key:       domain.CategoriesKey,
		entity:    domain.EntityCategory,
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		tracer:    observability.NoopTracer{},
		newID:     func() string { return ulid.Make().String() },
		nowFn:     time.Now,
		idle:      make(chan struct{}),
	}
	close(c.idle)
	for _, opt := range opts {
		opt(c)
	}

	c.create = &Operation[domain.CreateCategoryRequest, domain.Category]{
		controller: c,
		name:       "create_" + string(c.entity),
		verb:       "create",
		transform:  CreateTransform,
		call:       transport.CreateCategory,
		success: func(req domain.CreateCategoryRequest, created domain.Category) string {
			return fmt.Sprintf("%s %q created", c.entity.Label(), titleOr(created.Title, req.Title))
		},
	}
	c.update = &Operation[domain.UpdateCategoryRequest, domain.Category]{
		controller: c,
		name:       "update_" + string(c.entity),
		verb:       "update",
		transform:  UpdateTransform,
		call:       transport.UpdateCategory,
		success: func(req domain.UpdateCategoryRequest, updated domain.Category) string {
			return fmt.Sprintf("%s %q updated", c.entity.Label(), titleOr(updated.Title, req.ID))
		},
	}
	c.reposition = &Operation[domain.RepositionCategoryRequest, domain.Category]{
		controller: c,
		name:       "reposition_" + string(c.entity),
		verb:       "reposition",
		transform:  RepositionTransform,
		call:       transport.RepositionCategory,
		success: func(req domain.RepositionCategoryRequest, moved domain.Category) string {
			return fmt.Sprintf("%s %q moved to position %d", c.entity.Label(), titleOr(moved.Title, req.ID), req.Position)
		},
	}
	c.remove = &Operation[domain.DeleteCategoryRequest, domain.DeleteReceipt]{
		controller: c,
		name:       "delete_" + string(c.entity),
		verb:       "delete",
		transform:  DeleteTransform,
		call:       transport.DeleteCategory,
		success: func(_ domain.DeleteCategoryRequest, receipt domain.DeleteReceipt) string {
			noun := string(c.entity)
			if receipt.Affected != 1 {
				noun = pluralize(noun)
			}
			return fmt.Sprintf("Deleted %d %s", receipt.Affected, noun)
		},
	}
	return c, nil
}

// Create returns the create operation.
func (c *Controller) Create() *Operation[domain.CreateCategoryRequest, domain.Category] {
	return c.create
}

// Update returns the partial update operation.
func (c *Controller) Update() *Operation[domain.UpdateCategoryRequest, domain.Category] {
	return c.update
}

// Reposition returns the move operation.
func (c *Controller) Reposition() *Operation[domain.RepositionCategoryRequest, domain.Category] {
	return c.reposition
}

// Delete returns the delete operation.
func (c *Controller) Delete() *Operation[domain.DeleteCategoryRequest, domain.DeleteReceipt] {
	return c.remove
}

// Key returns the resource key this controller mutates.
func (c *Controller) Key() domain.ResourceKey {
	return c.key
}

// InFlight returns the number of invocations that have not settled yet.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Drain waits until no invocation is in flight. It may run concurrently with
// Mutate; invocations dispatched after the count reaches zero are not awaited.
func (c *Controller) Drain(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) track(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.active
	c.active += delta
	switch {
	case was == 0 && c.active > 0:
		c.idle = make(chan struct{})
	case was > 0 && c.active == 0:
		close(c.idle)
	}
}

func (c *Controller) emit(ev Event) {
	level := slog.LevelDebug
	if ev.Phase == PhaseError {
		level = slog.LevelWarn
	}
	attrs := []any{
		slog.String("invocation", ev.ID),
		slog.String("operation", ev.Operation),
		slog.String("phase", ev.Phase.String()),
	}
	if ev.Err != nil {
		attrs = append(attrs, slog.String("error", ev.Err.Error()))
	}
	c.logger.Log(context.Background(), level, "mutation phase", attrs...)
	if c.observer != nil {
		c.observer(ev)
	}
}

func (c *Controller) errorMessage(verb string, err error) string {
	msg := fmt.Sprintf("%s %s failed", c.entity.Label(), verb)
	if err != nil && err.Error() != "" {
		msg += ": " + err.Error()
	}
	return msg
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

func pluralize(noun string) string {
	if len(noun) > 1 && noun[len(noun)-1] == 'y' {
		return noun[:len(noun)-1] + "ies"
	}
	return noun + "s"
}
