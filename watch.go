package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go_imgutils/core"
	"go_imgutils/db"
	"go_imgutils/logging"
	"go_imgutils/shutdown"
	"go_imgutils/vision"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// fileStamp identifies one version of an inbox file.
type fileStamp struct {
	size    int64
	modTime time.Time
}

// TrackFunc runs a job so shutdown can wait for it; see shutdown.Manager.Track.
type TrackFunc func(ctx context.Context, name string, fn func(context.Context) error) error

// Watcher polls an inbox directory and runs the configured operation on
// every new or changed image, writing results to the outbox.
type Watcher struct {
	cfg    *core.Config
	proc   *Processor
	repo   *db.Repository
	track  TrackFunc
	logger *logging.Logger
	done   chan struct{}

	// seen holds the last version of each input already handled, so a
	// file is retried only after it changes.
	seen map[string]fileStamp
}

// NewWatcher creates a Watcher. repo (may be nil) lets it skip inputs that
// already succeeded in an earlier run. track defaults to running the job
// directly.
func NewWatcher(cfg *core.Config, proc *Processor, repo *db.Repository, track TrackFunc, logger *logging.Logger) *Watcher {
	if track == nil {
		track = func(ctx context.Context, _ string, fn func(context.Context) error) error { return fn(ctx) }
	}
	return &Watcher{
		cfg:    cfg,
		proc:   proc,
		repo:   repo,
		track:  track,
		logger: logger.Named("watch"),
		done:   make(chan struct{}),
		seen:   make(map[string]fileStamp),
	}
}

// Done is closed when Start returns.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Start polls until ctx is cancelled. Scan errors are logged and retried
// on the next tick.
func (w *Watcher) Start(ctx context.Context) {
	defer close(w.done)

	w.logger.Info("Watching inbox",
		zap.String("inbox", w.cfg.InboxDir),
		zap.String("outbox", w.cfg.OutboxDir),
		zap.String("operation", string(w.cfg.Operation)),
		zap.Duration("poll_interval", w.cfg.PollInterval))

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.Scan(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("Inbox scan failed, retrying", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping watch", zap.Int("files_seen", len(w.seen)))
			return
		case <-ticker.C:
		}
	}
}

// Scan processes every pending inbox file once and returns how many jobs
// ran. Jobs run one at a time in name order.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.cfg.InboxDir)
	if err != nil {
		return 0, fmt.Errorf("read inbox: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	ran := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		path, stamp, ok := w.candidate(entry)
		if !ok {
			continue
		}
		if w.alreadyDone(ctx, path) {
			w.seen[path] = stamp
			continue
		}

		err := w.track(ctx, filepath.Base(path), func(ctx context.Context) error {
			_, err := w.proc.Run(ctx, JobRequest{
				Operation: w.cfg.Operation,
				Input:     path,
				Output:    OutputPath(path, w.cfg.Operation, w.cfg.OutboxDir),
			})
			return err
		})
		if err != nil && isCancellation(err) {
			// Not marked seen: the next run picks it up again.
			return ran, err
		}
		w.seen[path] = stamp
		ran++
	}
	return ran, nil
}

// candidate reports whether entry is an image that needs processing.
func (w *Watcher) candidate(entry os.DirEntry) (string, fileStamp, bool) {
	name := entry.Name()
	if entry.IsDir() || strings.HasPrefix(name, ".") || !vision.IsSupportedInput(name) {
		return "", fileStamp{}, false
	}
	info, err := entry.Info()
	if err != nil {
		return "", fileStamp{}, false
	}
	path := filepath.Join(w.cfg.InboxDir, name)
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}
	if prev, ok := w.seen[path]; ok && prev == stamp {
		return "", fileStamp{}, false
	}

	// A file still being copied in is picked up on a later scan.
	if time.Since(info.ModTime()) < w.cfg.PollInterval/2 {
		return "", fileStamp{}, false
	}
	if w.cfg.MaxFileSize > 0 && info.Size() > w.cfg.MaxFileSize {
		w.logger.Warn("Skipping oversized input",
			zap.String("file", name),
			zap.String("size", humanize.IBytes(uint64(info.Size()))),
			zap.String("limit", humanize.IBytes(uint64(w.cfg.MaxFileSize))))
		w.seen[path] = stamp
		return "", fileStamp{}, false
	}
	return path, stamp, true
}

// alreadyDone reports whether an earlier run already succeeded on path
// and its output is still there.
func (w *Watcher) alreadyDone(ctx context.Context, path string) bool {
	if w.repo == nil {
		return false
	}
	ok, err := w.repo.HasSucceeded(ctx, string(w.cfg.Operation), path)
	if err != nil {
		w.logger.Warn("Job history lookup failed", zap.String("file", path), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if w.cfg.Operation != core.OpAICheck {
		if _, err := os.Stat(OutputPath(path, w.cfg.Operation, w.cfg.OutboxDir)); err != nil {
			return false
		}
	}
	w.logger.Debug("Skipping input processed in an earlier run", zap.String("file", path))
	return true
}

// registerCleanup adds the watch hooks to m in shutdown order.
func registerCleanup(m *shutdown.Manager, cfg *core.Config, logger *logging.Logger) {
	m.Register("partial-outputs", shutdown.PriorityFiles, shutdown.RemovePartialOutputs(logger.Zap(), cfg.OutboxDir))
	m.Register("logger", shutdown.PriorityLogging, func(context.Context) error {
		logger.Sync()
		return nil
	})
}
