package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult reports one retention pass.
type CleanupResult struct {
	JobsDeleted int64
	Duration    time.Duration
}

// Cleanup deletes jobs older than retentionDays and runs VACUUM. The
// delete is committed before VACUUM, so a VACUUM failure still reports
// the deleted count.
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	var result CleanupResult

	if retentionDays < 0 {
		return result, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return result, ErrClosed
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(timeLayout)
	res, err := d.db.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete old jobs: %w", err)
	}
	if result.JobsDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := ctx.Err(); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}
	if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

// StartCleanupScheduler runs Cleanup now and then every interval until ctx
// is done. onCleanup (optional) sees each result. A retentionDays of 0
// disables the scheduler.
func (d *Database) StartCleanupScheduler(ctx context.Context, retentionDays int, interval time.Duration, onCleanup func(CleanupResult, error)) {
	if retentionDays <= 0 || interval <= 0 {
		return
	}
	run := func() {
		result, err := d.Cleanup(ctx, retentionDays)
		if onCleanup != nil {
			onCleanup(result, err)
		}
	}
	go func() {
		run()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
