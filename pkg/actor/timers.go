package actor

import (
	"sync"
	"time"
)

// timerSet tracks pending deferred-action timers so they can be cancelled
// together when the actor stops.
type timerSet struct {
	mu      sync.Mutex
	next    uint64
	timers  map[uint64]*time.Timer
	stopped bool
}

func newTimerSet() *timerSet {
	return &timerSet{timers: make(map[uint64]*time.Timer)}
}

// schedule runs fn after d unless the set is stopped first.
// It reports whether the timer was armed.
func (s *timerSet) schedule(d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	id := s.next
	s.next++
	s.timers[id] = time.AfterFunc(d, func() {
		if !s.remove(id) {
			return
		}
		fn()
	})
	return true
}

// remove forgets timer id. It returns false if the set was stopped.
func (s *timerSet) remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	delete(s.timers, id)
	return true
}

// stopAll cancels every pending timer and rejects new ones.
func (s *timerSet) stopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	n := 0
	for id, t := range s.timers {
		if t.Stop() {
			n++
		}
		delete(s.timers, id)
	}
	return n
}

// pending returns the number of armed timers.
func (s *timerSet) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
