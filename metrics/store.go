package metrics

import (
	"sync"
	"time"
)

// degradedWindow is how many of the latest jobs decide the health value.
const degradedWindow = 10

// Store is an in-memory Collector. Recent jobs live in a fixed-size
// circular buffer; totals cover every job since start.
//
//	store := NewStore(StoreConfig{HistoryCapacity: 500, Version: core.Version}, time.Now())
//	store.RecordJob(job)
//	stats := store.JobStats()
type Store struct {
	mu sync.RWMutex

	history []JobRecord
	cap     int
	head    int
	size    int

	totalJobs    int64
	totalSuccess int64
	totalErrors  int64
	byOperation  map[string]*operationTotals
	lastError    string

	startTime time.Time
	version   string
}

type operationTotals struct {
	count         int64
	successCount  int64
	totalDuration time.Duration
	pixels        int64
}

// StoreConfig configures a Store.
type StoreConfig struct {
	HistoryCapacity int
	Version         string
}

// DefaultStoreConfig returns a 100-job history.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{HistoryCapacity: 100, Version: "dev"}
}

// NewStore creates a Store. startTime anchors Uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = 100
	}
	return &Store{
		history:     make([]JobRecord, capacity),
		cap:         capacity,
		byOperation: make(map[string]*operationTotals),
		startTime:   startTime,
		version:     config.Version,
	}
}

// RecordJob adds a job to the history and the totals.
func (s *Store) RecordJob(job JobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = job
	s.head = (s.head + 1) % s.cap
	if s.size < s.cap {
		s.size++
	}

	s.totalJobs++
	switch job.Status {
	case JobStatusSuccess:
		s.totalSuccess++
	case JobStatusError:
		s.totalErrors++
		s.lastError = job.ErrorMsg
	}

	t, ok := s.byOperation[job.Operation]
	if !ok {
		t = &operationTotals{}
		s.byOperation[job.Operation] = t
	}
	t.count++
	if job.Status == JobStatusSuccess {
		t.successCount++
		t.pixels += job.OutputPixels
	}
	t.totalDuration += job.Duration
}

// JobStats returns totals per operation.
func (s *Store) JobStats() JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := JobStats{
		TotalProcessed: s.totalJobs,
		TotalSuccess:   s.totalSuccess,
		TotalErrors:    s.totalErrors,
		ByOperation:    make(map[string]*OperationStats, len(s.byOperation)),
	}
	for op, t := range s.byOperation {
		stats.ByOperation[op] = &OperationStats{
			Count:       t.count,
			SuccessRate: float64(t.successCount) / float64(t.count) * 100,
			AvgDuration: t.totalDuration / time.Duration(t.count),
			Megapixels:  float64(t.pixels) / 1e6,
		}
	}
	return stats
}

// RecentJobs returns up to limit of the latest jobs, oldest first.
func (s *Store) RecentJobs(limit int) []JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(limit)
}

func (s *Store) recentLocked(limit int) []JobRecord {
	if limit <= 0 || s.size == 0 {
		return []JobRecord{}
	}
	if limit > s.size {
		limit = s.size
	}
	result := make([]JobRecord, limit)
	for i := 0; i < limit; i++ {
		result[i] = s.history[(s.head-limit+i+s.cap)%s.cap]
	}
	return result
}

// SystemStatus reports degraded when every one of the latest jobs failed.
func (s *Store) SystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := SystemHealthRunning
	recent := s.recentLocked(degradedWindow)
	if len(recent) > 0 {
		failed := 0
		for _, job := range recent {
			if job.Status == JobStatusError {
				failed++
			}
		}
		if failed == len(recent) {
			health = SystemHealthDegraded
		}
	}

	return SystemStatus{
		Health:    health,
		Version:   s.version,
		Uptime:    time.Since(s.startTime),
		LastCheck: time.Now(),
		LastError: s.lastError,
	}
}

var _ Collector = (*Store)(nil)
