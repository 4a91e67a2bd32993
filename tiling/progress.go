package tiling

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// ProgressReporter receives best-effort progress after each completed batch.
// Implementations must not block for long; they run on the engine's path.
type ProgressReporter interface {
	Report(done, total int)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(done, total int)

// Report implements ProgressReporter.
func (f ProgressFunc) Report(done, total int) { f(done, total) }

// NopProgress discards all events.
type NopProgress struct{}

// Report implements ProgressReporter.
func (NopProgress) Report(int, int) {}

// LogProgress writes one debug line per batch.
type LogProgress struct {
	Logger *zap.Logger
	Title  string
}

// Report implements ProgressReporter.
func (p LogProgress) Report(done, total int) {
	if p.Logger == nil {
		return
	}
	p.Logger.Debug("tile progress",
		zap.String("title", p.Title),
		zap.Int("tiles_done", done),
		zap.Int("tiles_total", total))
}

var barTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

// BarProgress redraws a single terminal progress line on every report.
type BarProgress struct {
	mu    sync.Mutex
	out   io.Writer
	title string
	bar   progress.Model
}

// NewBarProgress creates a bar that writes to out (typically os.Stderr).
func NewBarProgress(out io.Writer, title string) *BarProgress {
	return &BarProgress{
		out:   out,
		title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Report implements ProgressReporter.
func (p *BarProgress) Report(done, total int) {
	if total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	pct := float64(done) / float64(total)
	fmt.Fprintf(p.out, "\r%s %s %d/%d", barTitleStyle.Render(p.title), p.bar.ViewAs(pct), done, total)
	if done >= total {
		fmt.Fprintln(p.out)
	}
}

// progressCounter serializes reports so done counts arrive in increasing order
// even when batches finish on several goroutines.
type progressCounter struct {
	mu       sync.Mutex
	done     int
	total    int
	reporter ProgressReporter
}

func (c *progressCounter) add(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done += n
	c.reporter.Report(c.done, c.total)
}
