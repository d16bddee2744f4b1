package server

import (
	"context"
	"sync"
	"sync/atomic"
)

// ConnStats contains connection statistics.
type ConnStats struct {
	Active       int
	TotalCreated uint64
	TotalClosed  uint64
	Peak         int
}

// connManager tracks the running bridges so shutdown can cancel them.
type connManager struct {
	mu     sync.Mutex
	conns  map[string]context.CancelFunc
	peak   int
	closed bool
	wg     sync.WaitGroup

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
}

func newConnManager() *connManager {
	return &connManager{conns: make(map[string]context.CancelFunc)}
}

// add registers a bridge. The caller must call done(id) when it exits.
// It returns false once the manager is shutting down.
func (m *connManager) add(id string, cancel context.CancelFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.conns[id] = cancel
	if len(m.conns) > m.peak {
		m.peak = len(m.conns)
	}
	m.wg.Add(1)
	m.totalCreated.Add(1)
	return true
}

func (m *connManager) done(id string) {
	m.mu.Lock()
	cancel, ok := m.conns[id]
	delete(m.conns, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	cancel()
	m.totalClosed.Add(1)
	m.wg.Done()
}

// cancelAll cancels every running bridge without waiting and rejects
// further registrations.
func (m *connManager) cancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, cancel := range m.conns {
		cancel()
	}
}

// wait blocks until every bridge has exited or ctx ends.
func (m *connManager) wait(ctx context.Context) error {
	ch := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *connManager) stats() ConnStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ConnStats{
		Active:       len(m.conns),
		TotalCreated: m.totalCreated.Load(),
		TotalClosed:  m.totalClosed.Load(),
		Peak:         m.peak,
	}
}
