package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"go_imgutils/core"
	"go_imgutils/db"
	"go_imgutils/shutdown"

	"go.uber.org/zap/zaptest"
)

// watchFixture is a watcher over fresh inbox and outbox directories.
type watchFixture struct {
	cfg     *core.Config
	repo    *db.Repository
	watcher *Watcher
}

func newWatchFixture(t *testing.T, track TrackFunc) *watchFixture {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(t, core.OpRestore)
	cfg.InboxDir = filepath.Join(dir, "inbox")
	cfg.OutboxDir = filepath.Join(dir, "outbox")
	cfg.PollInterval = 10 * time.Millisecond
	for _, d := range []string{cfg.InboxDir, cfg.OutboxDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	repo := openTestRepo(t, cfg.DatabasePath)
	proc := newTestProcessor(t, cfg, repo, nil)
	return &watchFixture{
		cfg:     cfg,
		repo:    repo,
		watcher: NewWatcher(cfg, proc, repo, track, testLogger(t)),
	}
}

// drop writes an image into the inbox with a modtime old enough to be
// considered complete.
func (f *watchFixture) drop(t *testing.T, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(f.cfg.InboxDir, name)
	writeImage(t, path, 32, 16)
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}
	return path
}

func (f *watchFixture) scan(t *testing.T) int {
	t.Helper()
	n, err := f.watcher.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return n
}

func TestWatcher_ScanProcessesNewFiles(t *testing.T) {
	f := newWatchFixture(t, nil)
	a := f.drop(t, "a.png", time.Minute)
	b := f.drop(t, "b.png", time.Minute)

	if n := f.scan(t); n != 2 {
		t.Fatalf("first scan ran %d jobs, want 2", n)
	}
	for _, in := range []string{a, b} {
		if _, err := os.Stat(OutputPath(in, core.OpRestore, f.cfg.OutboxDir)); err != nil {
			t.Errorf("output for %s missing: %v", filepath.Base(in), err)
		}
	}
	if n := f.scan(t); n != 0 {
		t.Errorf("second scan ran %d jobs, want 0", n)
	}

	// A changed file is processed again.
	later := time.Now().Add(-30 * time.Second)
	if err := os.Chtimes(a, later, later); err != nil {
		t.Fatal(err)
	}
	if n := f.scan(t); n != 1 {
		t.Errorf("scan after change ran %d jobs, want 1", n)
	}

	jobs, err := f.repo.RecentJobs(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentJobs() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("recorded %d jobs, want 3", len(jobs))
	}
}

func TestWatcher_ScanSkips(t *testing.T) {
	f := newWatchFixture(t, nil)
	f.cfg.MaxFileSize = 64

	f.drop(t, ".hidden.png", time.Minute)
	f.drop(t, "big.png", time.Minute)
	f.drop(t, "fresh.png", 0)
	if err := os.WriteFile(filepath.Join(f.cfg.InboxDir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(f.cfg.InboxDir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	if n := f.scan(t); n != 0 {
		t.Errorf("Scan() ran %d jobs, want 0", n)
	}
	entries, err := os.ReadDir(f.cfg.OutboxDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("outbox has %d entries, want 0", len(entries))
	}
}

func TestWatcher_FreshFileIsPickedUpLater(t *testing.T) {
	f := newWatchFixture(t, nil)
	f.cfg.PollInterval = time.Hour
	path := f.drop(t, "copying.png", 0)

	if n := f.scan(t); n != 0 {
		t.Fatalf("Scan() ran %d jobs on a file still being written", n)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	if n := f.scan(t); n != 1 {
		t.Errorf("Scan() ran %d jobs, want 1", n)
	}
}

func TestWatcher_SkipsInputsDoneInEarlierRun(t *testing.T) {
	f := newWatchFixture(t, nil)
	in := f.drop(t, "a.png", time.Minute)
	if n := f.scan(t); n != 1 {
		t.Fatalf("first run: %d jobs", n)
	}

	// A new watcher over the same history, as after a restart.
	proc := newTestProcessor(t, f.cfg, f.repo, nil)
	restarted := NewWatcher(f.cfg, proc, f.repo, nil, testLogger(t))
	if n, err := restarted.Scan(context.Background()); err != nil || n != 0 {
		t.Fatalf("restarted Scan() = %d, %v; want 0 jobs", n, err)
	}

	// A deleted output is produced again.
	if err := os.Remove(OutputPath(in, core.OpRestore, f.cfg.OutboxDir)); err != nil {
		t.Fatal(err)
	}
	restarted = NewWatcher(f.cfg, proc, f.repo, nil, testLogger(t))
	if n, err := restarted.Scan(context.Background()); err != nil || n != 1 {
		t.Errorf("Scan() after output removal = %d, %v; want 1 job", n, err)
	}
}

func TestWatcher_CancelledJobIsRetried(t *testing.T) {
	var calls []string
	cancelled := true
	track := func(ctx context.Context, name string, fn func(context.Context) error) error {
		calls = append(calls, name)
		if cancelled {
			return shutdown.ErrClosed
		}
		return fn(ctx)
	}
	f := newWatchFixture(t, track)
	f.drop(t, "a.png", time.Minute)
	f.drop(t, "b.png", time.Minute)

	n, err := f.watcher.Scan(context.Background())
	if !isCancellation(err) || n != 0 {
		t.Fatalf("Scan() = %d, %v; want cancellation", n, err)
	}
	if !slices.Equal(calls, []string{"a.png"}) {
		t.Errorf("tracked %v, want only a.png", calls)
	}

	cancelled = false
	if n := f.scan(t); n != 2 {
		t.Errorf("Scan() after cancellation ran %d jobs, want 2", n)
	}
}

func TestWatcher_StartStopsOnCancel(t *testing.T) {
	f := newWatchFixture(t, nil)
	in := f.drop(t, "a.png", time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go f.watcher.Start(ctx)

	out := OutputPath(in, core.OpRestore, f.cfg.OutboxDir)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(out); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher never produced an output")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-f.watcher.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestWatcher_WithShutdownManager(t *testing.T) {
	m := shutdown.NewManager(zaptest.NewLogger(t), shutdown.WithTimeout(5*time.Second))
	f := newWatchFixture(t, m.Track)
	in := f.drop(t, "a.png", time.Minute)
	registerCleanup(m, f.cfg, testLogger(t))

	// A stale partial output from an interrupted run.
	partial := filepath.Join(f.cfg.OutboxDir, shutdown.PartialPrefix+"x.png")
	if err := os.WriteFile(partial, []byte("half"), 0o644); err != nil {
		t.Fatal(err)
	}

	if n, err := f.watcher.Scan(m.Context()); err != nil || n != 1 {
		t.Fatalf("Scan() = %d, %v", n, err)
	}
	if _, err := os.Stat(OutputPath(in, core.OpRestore, f.cfg.OutboxDir)); err != nil {
		t.Errorf("output missing: %v", err)
	}

	if got, want := m.Hooks(), []string{"partial-outputs", "logger"}; !slices.Equal(got, want) {
		t.Errorf("Hooks() = %v, want %v", got, want)
	}
	m.Stop()
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Errorf("partial output survived shutdown: %v", err)
	}
	if _, err := f.watcher.Scan(m.Context()); !isCancellation(err) {
		t.Errorf("Scan() after shutdown error = %v, want cancellation", err)
	}
}
