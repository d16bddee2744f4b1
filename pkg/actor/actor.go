package actor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vdombridge/pkg/protocol"
	"github.com/vango-dev/vdombridge/pkg/render"
	"github.com/vango-dev/vdombridge/pkg/vdom"
)

const tracerName = "github.com/vango-dev/vdombridge/pkg/actor"

// Reducer computes the next state for an action. It must be deterministic
// and must not mutate state; changed reports whether next differs from state.
// A non-nil error stops the actor.
type Reducer[S any] func(fx Effects, state S, action protocol.Action) (next S, changed bool, err error)

// Effects is the side-effect capability handed to a Reducer.
type Effects interface {
	// After delivers action to the same actor once d has elapsed.
	After(d time.Duration, action protocol.Action)
}

// Observer receives notifications from the actor loop.
type Observer interface {
	ActionApplied(tag protocol.Tag, changed bool, elapsed time.Duration)
	SnapshotPublished()
	DeferredScheduled(tag protocol.Tag)
}

// Option configures an Actor.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// WithLogger sets the actor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver sets the observer notified of transitions.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithTracer sets the tracer used for per-action spans.
// Default: the global OpenTelemetry tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// Actor applies actions to an owned state value and publishes a rendered
// tree for every state change.
type Actor[S any] struct {
	state    S
	reduce   Reducer[S]
	renderer render.Renderer[S]

	actions   chan protocol.Action
	inputDone chan struct{}
	inputOnce sync.Once
	done      chan struct{}
	started   atomic.Bool

	pub    *Publisher
	timers *timerSet

	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// New creates an Actor holding initial. Call Run to start it.
func New[S any](initial S, reduce Reducer[S], renderer render.Renderer[S], opts ...Option) *Actor[S] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "actor")
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	return &Actor[S]{
		state:     initial,
		reduce:    reduce,
		renderer:  renderer,
		actions:   make(chan protocol.Action, 1),
		inputDone: make(chan struct{}),
		done:      make(chan struct{}),
		pub:       NewPublisher(),
		timers:    newTimerSet(),
		logger:    o.logger,
		observer:  o.observer,
		tracer:    o.tracer,
	}
}

// Send enqueues an action, blocking while the queue is full.
func (a *Actor[S]) Send(ctx context.Context, action protocol.Action) error {
	select {
	case <-a.inputDone:
		return ErrInputClosed
	default:
	}
	select {
	case <-a.done:
		return ErrStopped
	default:
	}

	select {
	case a.actions <- action:
		return nil
	case <-a.inputDone:
		return ErrInputClosed
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseInput signals that no further external actions will arrive.
// The actor loop exits once it observes the signal.
func (a *Actor[S]) CloseInput() {
	a.inputOnce.Do(func() { close(a.inputDone) })
}

// Snapshots returns the stream of rendered trees. The first tree is the
// initial render; the stream is closed when Run returns.
func (a *Actor[S]) Snapshots() <-chan *vdom.VNode {
	return a.pub.Snapshots()
}

// Done is closed when the actor loop has exited.
func (a *Actor[S]) Done() <-chan struct{} {
	return a.done
}

// Run publishes the initial render and then applies actions until the input
// is closed, ctx ends or the reducer fails. Actions accepted by Send before
// CloseInput are applied before Run returns. On return all pending deferred
// actions are cancelled and the snapshot stream is closed.
func (a *Actor[S]) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.pub.Close()
	defer func() {
		if n := a.timers.stopAll(); n > 0 {
			a.logger.Debug("cancelled deferred actions", "count", n)
		}
	}()
	defer close(a.done)

	if err := a.publish(ctx, a.renderer.Render(a.state)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.inputDone:
			return a.drain(ctx)
		case action := <-a.actions:
			if err := a.apply(ctx, action); err != nil {
				return err
			}
		}
	}
}

// drain applies the actions that were queued before the input closed.
func (a *Actor[S]) drain(ctx context.Context) error {
	for {
		select {
		case action := <-a.actions:
			if err := a.apply(ctx, action); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// apply runs one transition and publishes the result if it changed state.
func (a *Actor[S]) apply(ctx context.Context, action protocol.Action) error {
	ctx, span := a.tracer.Start(ctx, "actor.apply",
		trace.WithAttributes(attribute.String("action.tag", string(action.Tag))))
	defer span.End()

	start := time.Now()
	next, changed, err := a.reduce(effects[S]{a: a}, a.state, action)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reducer failed")
		a.logger.Error("reducer failed", "tag", action.Tag, "error", err)
		return &ReducerError{Tag: action.Tag, Err: err}
	}

	span.SetAttributes(attribute.Bool("action.changed", changed))
	a.observer.ActionApplied(action.Tag, changed, elapsed)
	if !changed {
		a.logger.Debug("action left state unchanged", "tag", action.Tag)
		return nil
	}

	a.state = next
	return a.publish(ctx, a.renderer.Render(next))
}

func (a *Actor[S]) publish(ctx context.Context, tree *vdom.VNode) error {
	if err := a.pub.Publish(ctx, tree); err != nil {
		return err
	}
	a.observer.SnapshotPublished()
	return nil
}

// PendingDeferred returns the number of deferred actions not yet delivered.
func (a *Actor[S]) PendingDeferred() int {
	return a.timers.pending()
}

// effects binds Effects to one actor.
type effects[S any] struct {
	a *Actor[S]
}

// After implements Effects.
func (e effects[S]) After(d time.Duration, action protocol.Action) {
	a := e.a
	armed := a.timers.schedule(d, func() {
		select {
		case a.actions <- action:
		case <-a.done:
		}
	})
	if armed {
		a.observer.DeferredScheduled(action.Tag)
	}
}

type nopObserver struct{}

func (nopObserver) ActionApplied(protocol.Tag, bool, time.Duration) {}
func (nopObserver) SnapshotPublished()                               {}
func (nopObserver) DeferredScheduled(protocol.Tag)                   {}
