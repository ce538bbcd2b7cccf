package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"boardcore/internal/snapshot"
	"boardcore/pkg/domain"
)

// Phase is a step of the per-invocation state machine.
type Phase int32

// Phases run strictly in this order for one invocation; exactly one of
// PhaseSuccess and PhaseError is visited.
const (
	PhaseIdle Phase = iota
	PhasePendingCancel
	PhaseSnapshot
	PhaseApply
	PhaseInFlight
	PhaseSuccess
	PhaseError
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhasePendingCancel:
		return "PENDING_CANCEL"
	case PhaseSnapshot:
		return "SNAPSHOT"
	case PhaseApply:
		return "APPLY"
	case PhaseInFlight:
		return "IN_FLIGHT"
	case PhaseSuccess:
		return "SUCCESS"
	case PhaseError:
		return "ERROR"
	case PhaseSettled:
		return "SETTLED"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// mutationContext is the per-invocation state threaded from SNAPSHOT to ERROR.
type mutationContext struct {
	previous snapshot.Snapshot
}

// Operation is one optimistic action of a controller. V is the request and R
// the confirmed transport result.
type Operation[V, R any] struct {
	controller *Controller
	name       string
	verb       string
	transform  func(current domain.Collection, present bool, req V) domain.Collection
	call       func(ctx context.Context, req V) (R, error)
	success    func(req V, result R) string
}

// Name returns the operation identifier used in logs, metrics and traces.
func (o *Operation[V, R]) Name() string {
	return o.name
}

// Mutate applies req speculatively and dispatches the transport call. It
// returns once the speculative state is installed; the outcome is delivered
// through the returned Pending. The only error Mutate reports is ctx ending
// while background refreshes are being cancelled; nothing has been written
// then, and the failure is still sent to the notifier.
func (o *Operation[V, R]) Mutate(ctx context.Context, req V) (*Pending[R], error) {
	c := o.controller
	p := newPending[R](c.newID(), o.name)

	o.enter(p, PhasePendingCancel, nil)
	if err := c.store.CancelPending(ctx, c.key); err != nil {
		c.notifier.NotifyError(c.errorMessage(o.verb, err))
		return nil, fmt.Errorf("%s: %w", o.name, err)
	}

	current, present := c.store.Get(c.key)
	mctx := mutationContext{previous: snapshot.Capture(current, present)}
	o.enter(p, PhaseSnapshot, nil)

	c.store.Set(c.key, func(cur domain.Collection, ok bool) domain.Collection {
		return o.transform(cur, ok, req)
	})
	o.enter(p, PhaseApply, nil)

	// Mutations are never cancelled once started.
	callCtx := context.WithoutCancel(ctx)
	c.track(1)
	o.enter(p, PhaseInFlight, nil)
	go o.settle(callCtx, p, mctx, req)
	return p, nil
}

// Run is Mutate followed by Wait.
func (o *Operation[V, R]) Run(ctx context.Context, req V) (R, error) {
	p, err := o.Mutate(ctx, req)
	if err != nil {
		var zero R
		return zero, err
	}
	return p.Wait(ctx)
}

func (o *Operation[V, R]) settle(ctx context.Context, p *Pending[R], mctx mutationContext, req V) {
	c := o.controller
	defer c.track(-1)

	started := c.nowFn()
	spanCtx, span := c.tracer.Start(ctx, o.name)
	result, err := o.invoke(spanCtx, req)
	span.End(err)
	c.metrics.Observe(spanCtx, o.name, err == nil, c.nowFn().Sub(started))

	if err != nil {
		o.enter(p, PhaseError, err)
		if previous, ok := mctx.previous.Restore(); ok {
			c.store.Set(c.key, func(domain.Collection, bool) domain.Collection { return previous })
			c.logger.Warn("mutation rolled back",
				slog.String("invocation", p.id),
				slog.String("operation", o.name),
				slog.Int("restored", len(previous)))
		}
		c.notifier.NotifyError(c.errorMessage(o.verb, err))
	} else {
		o.enter(p, PhaseSuccess, nil)
		c.notifier.NotifySuccess(o.success(req, result))
	}

	c.store.Invalidate(c.key)
	o.enter(p, PhaseSettled, err)
	p.resolve(result, err)
}

// invoke shields the controller from transport panics.
func (o *Operation[V, R]) invoke(ctx context.Context, req V) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return o.call(ctx, req)
}

func (o *Operation[V, R]) enter(p *Pending[R], phase Phase, err error) {
	p.phase.Store(int32(phase))
	o.controller.emit(Event{ID: p.id, Operation: o.name, Phase: phase, Err: err})
}

// Pending is the handle of a dispatched invocation.
type Pending[R any] struct {
	id        string
	operation string
	phase     atomic.Int32
	done      chan struct{}
	result    R
	err       error
}

func newPending[R any](id, operation string) *Pending[R] {
	return &Pending[R]{id: id, operation: operation, done: make(chan struct{})}
}

func (p *Pending[R]) resolve(result R, err error) {
	p.result = result
	p.err = err
	close(p.done)
}

// ID returns the invocation identifier.
func (p *Pending[R]) ID() string { return p.id }

// Operation returns the name of the operation that produced p.
func (p *Pending[R]) Operation() string { return p.operation }

// Phase returns the most recent phase entered.
func (p *Pending[R]) Phase() Phase { return Phase(p.phase.Load()) }

// Done is closed once the invocation has settled.
func (p *Pending[R]) Done() <-chan struct{} { return p.done }

// Wait blocks until the invocation settles and returns the transport outcome.
// Cancelling ctx stops the wait, not the invocation.
func (p *Pending[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}
