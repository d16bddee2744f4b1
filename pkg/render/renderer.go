// Package render defines the rendering capability consumed by the actor.
//
// A Renderer turns application state into an immutable vdom tree. Tree
// diffing and subtree caching belong to the renderer, not to the actor;
// Memo provides the minimal form of that caching for states that are
// comparable values.
package render

import (
	"sync"

	"github.com/vango-dev/vdombridge/pkg/vdom"
)

// Renderer renders state S to a tree.
type Renderer[S any] interface {
	Render(state S) *vdom.VNode
}

// Func adapts a plain function to Renderer.
type Func[S any] func(state S) *vdom.VNode

// Render implements Renderer.
func (f Func[S]) Render(state S) *vdom.VNode {
	return f(state)
}

// Memo wraps a Renderer and returns the previously rendered tree when the
// state is equal to the last one rendered.
type Memo[S comparable] struct {
	inner Renderer[S]

	mu    sync.Mutex
	last  S
	tree  *vdom.VNode
	valid bool
	hits  uint64
}

// NewMemo creates a Memo around inner.
func NewMemo[S comparable](inner Renderer[S]) *Memo[S] {
	return &Memo[S]{inner: inner}
}

// Render implements Renderer.
func (m *Memo[S]) Render(state S) *vdom.VNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid && m.last == state {
		m.hits++
		return m.tree
	}
	m.tree = m.inner.Render(state)
	m.last = state
	m.valid = true
	return m.tree
}

// Hits returns how many renders were served from the cache.
func (m *Memo[S]) Hits() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}
