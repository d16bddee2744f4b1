package counter

import (
	"github.com/vango-dev/vdombridge/pkg/render"
	"github.com/vango-dev/vdombridge/pkg/server"
)

// NewSessionFactory returns a factory giving every connection its own
// counter, starting at zero, with its own renderer cache.
func NewSessionFactory(opts Options) server.SessionFactory {
	return server.ActorFactory(
		func() State { return State{} },
		NewReducer(opts),
		func() render.Renderer[State] { return NewRenderer() },
	)
}
