package server

import (
	"context"
	"log/slog"

	"github.com/vango-dev/vdombridge/pkg/actor"
	"github.com/vango-dev/vdombridge/pkg/protocol"
	"github.com/vango-dev/vdombridge/pkg/render"
	"github.com/vango-dev/vdombridge/pkg/vdom"
)

// Session is the per-connection state loop a Bridge pumps messages for.
// *actor.Actor[S] satisfies it for any S.
type Session interface {
	// Run processes actions until the input closes or ctx ends, then
	// closes the snapshot stream.
	Run(ctx context.Context) error

	// Send enqueues an inbound action.
	Send(ctx context.Context, action protocol.Action) error

	// CloseInput signals that the connection will deliver no more actions.
	CloseInput()

	// Snapshots streams rendered trees, starting with the initial render.
	Snapshots() <-chan *vdom.VNode
}

// ConnInfo describes an accepted connection to a SessionFactory.
type ConnInfo struct {
	ID         string
	RemoteAddr string
	Logger     *slog.Logger
	Observer   actor.Observer
}

// SessionFactory creates a fresh Session for every accepted connection.
// Sessions must not share state.
type SessionFactory func(ctx context.Context, info ConnInfo) (Session, error)

// ActorFactory adapts an actor constructor to a SessionFactory. newState
// is called once per connection; the actor gets the connection's logger and
// the server metrics as observer.
func ActorFactory[S any](newState func() S, reduce actor.Reducer[S], newRenderer func() render.Renderer[S]) SessionFactory {
	return func(_ context.Context, info ConnInfo) (Session, error) {
		return actor.New(newState(), reduce, newRenderer(),
			actor.WithLogger(info.Logger),
			actor.WithObserver(info.Observer),
		), nil
	}
}
