package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job status values stored in jobs.status.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// timeLayout is how created_at is written; it sorts and compares as text
// against SQLite's datetime().
const timeLayout = "2006-01-02 15:04:05"

// ErrJobNotFound is returned by GetJob for an unknown id.
var ErrJobNotFound = errors.New("db: job not found")

// JobRecord is one row of the jobs table.
type JobRecord struct {
	ID           string // UUID, generated on insert when empty
	Operation    string
	Model        string
	InputPath    string
	OutputPath   string
	InputWidth   int
	InputHeight  int
	OutputWidth  int
	OutputHeight int
	TileSize     int
	TileOverlap  int
	BatchSize    int
	Scale        int
	Score        *float64 // AI checks only
	Status       string
	ErrorMessage string
	DurationMS   int64
	CreatedAt    time.Time
}

// OperationStats aggregates the stored jobs of one operation.
type OperationStats struct {
	Operation     string
	Total         int64
	Succeeded     int64
	Failed        int64
	AvgDurationMS float64
	OutputPixels  int64
}

// Repository reads and writes job history. Inserts go through the
// AsyncWriter when one is running.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a Repository. asyncWriter may be nil.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{db: db, asyncWriter: asyncWriter}
}

const insertJobQuery = `
	INSERT INTO jobs (
		id, operation, model, input_path, output_path,
		input_width, input_height, output_width, output_height,
		tile_size, tile_overlap, batch_size, scale,
		score, status, error_message, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectJobColumns = `
	SELECT id, operation, model, input_path, COALESCE(output_path, ''),
		input_width, input_height, output_width, output_height,
		tile_size, tile_overlap, batch_size, scale,
		score, status, COALESCE(error_message, ''), duration_ms, created_at
	FROM jobs`

// InsertJob stores rec and returns its id. A missing id or CreatedAt is
// filled in. When the async writer accepts the row, the insert happens
// later and errors go to the writer's error callback.
func (r *Repository) InsertJob(ctx context.Context, rec JobRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Scale == 0 {
		rec.Scale = 1
	}

	if r.asyncWriter != nil && r.asyncWriter.Write(rec) {
		return rec.ID, nil
	}
	if err := r.insert(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *Repository) insert(ctx context.Context, rec JobRecord) error {
	var score any
	if rec.Score != nil {
		score = *rec.Score
	}
	_, err := r.db.ExecContext(ctx, insertJobQuery,
		rec.ID, rec.Operation, rec.Model, rec.InputPath, nullString(rec.OutputPath),
		rec.InputWidth, rec.InputHeight, rec.OutputWidth, rec.OutputHeight,
		rec.TileSize, rec.TileOverlap, rec.BatchSize, rec.Scale,
		score, rec.Status, nullString(rec.ErrorMessage), rec.DurationMS,
		rec.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", rec.ID, err)
	}
	return nil
}

// AsyncWriteHandler applies JobRecord writes queued by InsertJob.
func (r *Repository) AsyncWriteHandler() WriteHandler {
	return func(ctx context.Context, op WriteOperation) error {
		rec, ok := op.Data.(JobRecord)
		if !ok {
			return fmt.Errorf("db: unexpected queued write %T", op.Data)
		}
		return r.insert(ctx, rec)
	}
}

// GetJob returns the job with id.
func (r *Repository) GetJob(ctx context.Context, id string) (JobRecord, error) {
	jobs, err := r.queryJobs(ctx, selectJobColumns+` WHERE id = ?`, id)
	if err != nil {
		return JobRecord{}, err
	}
	if len(jobs) == 0 {
		return JobRecord{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return jobs[0], nil
}

// RecentJobs returns up to limit jobs, newest first. limit <= 0 means 10.
func (r *Repository) RecentJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.queryJobs(ctx, selectJobColumns+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// JobsByOperation returns up to limit jobs of one operation, newest first.
func (r *Repository) JobsByOperation(ctx context.Context, operation string, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.queryJobs(ctx,
		selectJobColumns+` WHERE operation = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		operation, limit)
}

// HasSucceeded reports whether inputPath already has a successful job for
// operation.
func (r *Repository) HasSucceeded(ctx context.Context, operation, inputPath string) (bool, error) {
	var n int
	err := r.db.ScanOne(ctx, []any{&n},
		`SELECT COUNT(*) FROM jobs WHERE operation = ? AND input_path = ? AND status = ?`,
		operation, inputPath, StatusSuccess)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", inputPath, err)
	}
	return n > 0, nil
}

// CountJobs returns the number of stored jobs.
func (r *Repository) CountJobs(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.ScanOne(ctx, []any{&n}, `SELECT COUNT(*) FROM jobs`); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

// Stats aggregates stored jobs per operation, ordered by operation name.
func (r *Repository) Stats(ctx context.Context) ([]OperationStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT operation,
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(SUM(CASE WHEN status = 'success' THEN output_width * output_height ELSE 0 END), 0)
		FROM jobs
		GROUP BY operation
		ORDER BY operation`)
	if err != nil {
		return nil, fmt.Errorf("failed to query job stats: %w", err)
	}
	defer rows.Close()

	var stats []OperationStats
	for rows.Next() {
		var s OperationStats
		if err := rows.Scan(&s.Operation, &s.Total, &s.Succeeded, &s.Failed, &s.AvgDurationMS, &s.OutputPixels); err != nil {
			return nil, fmt.Errorf("failed to scan job stats row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job stats rows: %w", err)
	}
	return stats, nil
}

func (r *Repository) queryJobs(ctx context.Context, query string, args ...any) ([]JobRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var rec JobRecord
		var score sql.NullFloat64
		var created sqliteTime
		err := rows.Scan(
			&rec.ID, &rec.Operation, &rec.Model, &rec.InputPath, &rec.OutputPath,
			&rec.InputWidth, &rec.InputHeight, &rec.OutputWidth, &rec.OutputHeight,
			&rec.TileSize, &rec.TileOverlap, &rec.BatchSize, &rec.Scale,
			&score, &rec.Status, &rec.ErrorMessage, &rec.DurationMS, &created,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		if score.Valid {
			v := score.Float64
			rec.Score = &v
		}
		rec.CreatedAt = created.Time
		jobs = append(jobs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// sqliteTime scans DATETIME columns, which the driver may hand back as
// time.Time or as text depending on how the value was written.
type sqliteTime struct{ time.Time }

func (t *sqliteTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = x.UTC()
		return nil
	case string:
		return t.parse(x)
	case []byte:
		return t.parse(string(x))
	default:
		return fmt.Errorf("db: cannot scan %T into time", v)
	}
}

func (t *sqliteTime) parse(s string) error {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("db: cannot parse time %q", s)
}

// nullString stores empty strings as NULL.
func nullString(s string) any {
	if s == "" {
		return sql.NullString{}
	}
	return s
}
