package actor

import (
	"context"
	"sync"

	"github.com/vango-dev/vdombridge/pkg/vdom"
)

// Publisher hands rendered trees to the connection's outbound path.
// The queue holds one tree; Publish blocks until the previous one was taken.
//
// Publish and Close must be called from the same goroutine.
type Publisher struct {
	ch   chan *vdom.VNode
	once sync.Once
}

// NewPublisher creates a Publisher with a single-slot queue.
func NewPublisher() *Publisher {
	return &Publisher{ch: make(chan *vdom.VNode, 1)}
}

// Publish enqueues tree, waiting for room or for ctx to end.
func (p *Publisher) Publish(ctx context.Context, tree *vdom.VNode) error {
	select {
	case p.ch <- tree:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshots returns the receive side of the queue. It is closed by Close.
func (p *Publisher) Snapshots() <-chan *vdom.VNode {
	return p.ch
}

// Close ends the snapshot stream. Trees already queued remain readable.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.ch) })
}
