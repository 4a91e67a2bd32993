package inference

import (
	"context"
	"fmt"
	"sync"

	"go_imgutils/tensor"
	"go_imgutils/tiling"
)

// PooledSession wraps a Session with pool management metadata.
type PooledSession struct {
	Session
	poolID int
	inUse  bool
}

// ID returns the pool-assigned identifier of this session.
func (ps *PooledSession) ID() int { return ps.poolID }

// SessionPool manages up to maxSize sessions of one model for reuse.
// Sessions are created lazily on Acquire and shared by concurrent callers.
//
// Public API:
//   - NewSessionPool(): Create a new pool
//   - Run(): Run the model once (acquire, run, release)
//   - Transform(): Adapt the pool to the tiling engine
//   - Close(): Shut down the pool and close all sessions
type SessionPool struct {
	mu        sync.Mutex
	sessions  chan *PooledSession
	maxSize   int
	modelPath string
	loader    Loader
	closed    bool
	created   int
	nextID    int
}

// NewSessionPool creates a pool of at most maxSize sessions opened from
// modelPath by loader.
func NewSessionPool(maxSize int, modelPath string, loader Loader) (*SessionPool, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: pool size %d must be positive", ErrInvalidParams, maxSize)
	}
	if loader == nil {
		return nil, fmt.Errorf("%w: nil loader", ErrInvalidParams)
	}

	return &SessionPool{
		sessions:  make(chan *PooledSession, maxSize),
		maxSize:   maxSize,
		modelPath: modelPath,
		loader:    loader,
		nextID:    1,
	}, nil
}

// Run executes the model once on input.
//
// Error cases:
//   - ErrAcquireTimeout: ctx done before a session became available
//   - ErrPoolClosed: pool has been closed
//   - ErrInferenceFailed: the session returned an error
func (p *SessionPool) Run(ctx context.Context, input *tensor.Tensor) (Output, error) {
	ps, err := p.Acquire(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("acquire session: %w", err)
	}
	defer p.Release(ps)

	out, err := ps.Run(ctx, input)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}
	if len(out.Data) != out.Len() {
		return Output{}, fmt.Errorf("%w: shape %v with %d values", ErrUnexpectedOutput, out.Shape, len(out.Data))
	}
	return out, nil
}

// Transform adapts the pool to the tiling engine for models whose output
// is already (N, C, H*scale, W*scale).
func (p *SessionPool) Transform() tiling.Transform {
	return func(ctx context.Context, batch *tensor.Tensor) (*tensor.Tensor, error) {
		out, err := p.Run(ctx, batch)
		if err != nil {
			return nil, err
		}
		return out.Tensor()
	}
}

// Acquire retrieves a session from the pool, respecting ctx's deadline.
// If none is idle and the pool has capacity, a new one is opened.
func (p *SessionPool) Acquire(ctx context.Context) (*PooledSession, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	select {
	case ps := <-p.sessions:
		ps.inUse = true
		p.mu.Unlock()
		return ps, nil
	default:
	}

	if p.created < p.maxSize {
		poolID := p.nextID
		p.nextID++
		p.created++
		p.mu.Unlock()

		s, err := p.loader(p.modelPath)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}
		return &PooledSession{Session: s, poolID: poolID, inUse: true}, nil
	}
	p.mu.Unlock()

	select {
	case ps := <-p.sessions:
		if ps == nil {
			return nil, ErrPoolClosed
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			ps.Close()
			return nil, ErrPoolClosed
		}
		ps.inUse = true
		p.mu.Unlock()
		return ps, nil

	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrAcquireTimeout, ctx.Err())
	}
}

// Release returns a session to the pool. If the pool is closed the session
// is closed instead. Passing nil is a no-op.
func (p *SessionPool) Release(ps *PooledSession) {
	if ps == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ps.inUse = false

	if p.closed {
		ps.Close()
		p.created--
		return
	}

	select {
	case p.sessions <- ps:
	default:
		ps.Close()
		p.created--
	}
}

// Close shuts down the pool and closes idle sessions. Sessions still
// acquired are closed when released. Close is safe to call multiple times.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.sessions)

	var firstErr error
	for ps := range p.sessions {
		if ps == nil {
			continue
		}
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.created--
	}
	return firstErr
}

// Size returns the number of idle sessions.
func (p *SessionPool) Size() int {
	return len(p.sessions)
}

// Created returns the number of open sessions, idle or acquired.
func (p *SessionPool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// MaxSize returns the maximum capacity of the pool.
func (p *SessionPool) MaxSize() int {
	return p.maxSize
}

// IsClosed reports whether Close has been called.
func (p *SessionPool) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ModelPath returns the path sessions are opened from.
func (p *SessionPool) ModelPath() string {
	return p.modelPath
}
