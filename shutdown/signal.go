package shutdown

import (
	"os"
	"sync"
)

// SignalCounter remembers received signals. The first one starts a
// graceful stop; reaching the force threshold calls onForce with the
// triggering signal.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	first      os.Signal
	forceAfter int
	onForce    func(os.Signal)
}

// NewSignalCounter returns a counter that calls onForce (may be nil) once
// forceAfter signals have arrived.
func NewSignalCounter(forceAfter int, onForce func(os.Signal)) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Record counts sig and returns the new count. onForce runs under the
// lock, so it should exit or return quickly.
func (s *SignalCounter) Record(sig os.Signal) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if s.first == nil {
		s.first = sig
	}
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce(sig)
	}
	return s.count
}

// Count returns the number of recorded signals.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// First returns the signal that started shutdown, or nil.
func (s *SignalCounter) First() os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first
}
