package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultChannelCapacity is the default buffer size for queued writes.
const DefaultChannelCapacity = 100

// WriteOperation is one queued write.
type WriteOperation struct {
	Data      any
	Timestamp time.Time
}

// WriteHandler applies a queued write. It runs on the writer goroutine.
type WriteHandler func(ctx context.Context, op WriteOperation) error

// AsyncWriter moves database writes off the job path through a buffered
// channel and one background goroutine. Writes never block; a full queue
// makes Write return false so the caller can write synchronously.
type AsyncWriter struct {
	writeChan chan WriteOperation
	handler   WriteHandler
	onError   func(error)

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	stopped bool

	written atomic.Int64
	failed  atomic.Int64
}

// NewAsyncWriter creates a writer with capacity queued operations. onError
// (optional) sees every handler failure.
func NewAsyncWriter(handler WriteHandler, capacity int, onError func(error)) *AsyncWriter {
	if capacity < 1 {
		capacity = DefaultChannelCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncWriter{
		writeChan: make(chan WriteOperation, capacity),
		handler:   handler,
		onError:   onError,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background goroutine. Calling it twice is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.processWrites()
}

func (w *AsyncWriter) processWrites() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case op := <-w.writeChan:
			w.apply(op)
		}
	}
}

// drain applies whatever is still queued after Stop.
func (w *AsyncWriter) drain() {
	for {
		select {
		case op := <-w.writeChan:
			w.apply(op)
		default:
			return
		}
	}
}

func (w *AsyncWriter) apply(op WriteOperation) {
	// Writes still queued at shutdown must land, so they do not inherit
	// the cancelled writer context.
	if err := w.handler(context.WithoutCancel(w.ctx), op); err != nil {
		w.failed.Add(1)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.written.Add(1)
}

// Write queues data. It returns false when the writer is stopped, not yet
// started or full.
func (w *AsyncWriter) Write(data any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started || w.stopped {
		return false
	}
	select {
	case w.writeChan <- WriteOperation{Data: data, Timestamp: time.Now()}:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued operations.
func (w *AsyncWriter) Pending() int {
	return len(w.writeChan)
}

// Written and Failed count handled operations.
func (w *AsyncWriter) Written() int64 { return w.written.Load() }
func (w *AsyncWriter) Failed() int64  { return w.failed.Load() }

// IsStarted reports whether the writer accepts operations.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started && !w.stopped
}

// Stop rejects new writes, drains the queue and waits up to timeout. It
// returns false if the drain did not finish in time.
func (w *AsyncWriter) Stop(timeout time.Duration) bool {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
