// Package shutdown coordinates graceful stop of long-running modes: it
// cancels a root context on SIGINT/SIGTERM, waits for in-flight jobs and
// then runs cleanup hooks in priority order.
package shutdown

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when a job is started after shutdown began.
var ErrClosed = errors.New("shutdown: no new jobs accepted")

// ErrWaitTimeout is returned when in-flight jobs outlive the wait.
var ErrWaitTimeout = errors.New("shutdown: jobs did not finish in time")

// JobTracker counts in-flight jobs. Once closed it refuses new ones while
// letting running ones finish.
//
//	if !tracker.Begin() {
//	    return ErrClosed
//	}
//	defer tracker.End()
type JobTracker struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	active atomic.Int64
	closed bool
}

// NewJobTracker returns an open tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{}
}

// Begin registers a job. It returns false after Close; callers that get
// true must call End exactly once.
func (t *JobTracker) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	t.active.Add(1)
	return true
}

// End marks a job finished.
func (t *JobTracker) End() {
	t.active.Add(-1)
	t.wg.Done()
}

// Wait blocks until every job has ended or timeout elapses.
func (t *JobTracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrWaitTimeout
	}
}

// Close stops Begin from accepting jobs.
func (t *JobTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Active returns the number of running jobs.
func (t *JobTracker) Active() int64 {
	return t.active.Load()
}

// IsClosed reports whether Close was called.
func (t *JobTracker) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
