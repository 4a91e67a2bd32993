package inference

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry caches one SessionPool per model name. It is owned by the caller
// and closed with it; nothing in this package holds models globally.
type Registry struct {
	mu      sync.Mutex
	cfg     *Config
	logger  *zap.Logger
	loaders map[string]Loader
	pools   map[string]*SessionPool
	closed  bool
}

// NewRegistry creates an empty registry. A nil cfg uses DefaultConfig.
func NewRegistry(cfg *Config, logger *zap.Logger) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		loaders: make(map[string]Loader),
		pools:   make(map[string]*SessionPool),
	}
}

// Register binds name to a custom loader. It must be called before the
// first Pool call for that name.
func (r *Registry) Register(name string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = loader
}

// Pool returns the pool for name, creating it on first use. Builtin names
// resolve to pure-Go sessions; anything else is opened from the model
// directory.
func (r *Registry) Pool(name string) (*SessionPool, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty model name", ErrUnknownModel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrPoolClosed
	}
	if p, ok := r.pools[name]; ok {
		return p, nil
	}

	path := r.cfg.ModelPath(name)
	loader, ok := r.loaders[name]
	if !ok {
		if loader, ok = builtinLoader(name); !ok {
			loader = OpenModelFile(r.cfg)
		} else {
			path = name
		}
	}

	p, err := NewSessionPool(r.cfg.MaxSessions, path, loader)
	if err != nil {
		return nil, err
	}
	r.pools[name] = p
	r.logger.Debug("model pool created",
		zap.String("model", name),
		zap.String("path", path),
		zap.Int("max_sessions", r.cfg.MaxSessions))
	return p, nil
}

// Names returns the model names with an open pool, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every pool. Close is safe to call multiple times.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for name, p := range r.pools {
		if err := p.Close(); err != nil {
			r.logger.Warn("failed to close model pool", zap.String("model", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
