package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func job(id, op, status string, d time.Duration, pixels int64) JobRecord {
	return JobRecord{ID: id, Operation: op, Status: status, Duration: d, OutputPixels: pixels}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		config  StoreConfig
		wantCap int
	}{
		{"default", DefaultStoreConfig(), 100},
		{"custom", StoreConfig{HistoryCapacity: 5, Version: "1.2.3"}, 5},
		{"zero capacity", StoreConfig{}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(tt.config, time.Now())
			if s.cap != tt.wantCap {
				t.Errorf("cap = %d, want %d", s.cap, tt.wantCap)
			}
		})
	}
}

func TestStore_JobStats(t *testing.T) {
	s := NewStore(DefaultStoreConfig(), time.Now())
	s.RecordJob(job("1", "restore", JobStatusSuccess, 2*time.Second, 1_000_000))
	s.RecordJob(job("2", "restore", JobStatusError, 4*time.Second, 0))
	s.RecordJob(job("3", "upscale", JobStatusSuccess, time.Second, 4_000_000))
	s.RecordJob(job("4", "aicheck", JobStatusProcessing, 0, 0))

	stats := s.JobStats()
	if stats.TotalProcessed != 4 || stats.TotalSuccess != 2 || stats.TotalErrors != 1 {
		t.Errorf("totals = %d/%d/%d", stats.TotalProcessed, stats.TotalSuccess, stats.TotalErrors)
	}
	restore := stats.ByOperation["restore"]
	if restore == nil || restore.Count != 2 || restore.SuccessRate != 50 || restore.AvgDuration != 3*time.Second {
		t.Errorf("restore stats = %+v", restore)
	}
	if restore.Megapixels != 1 {
		t.Errorf("restore megapixels = %v, failed jobs should not count", restore.Megapixels)
	}
	if up := stats.ByOperation["upscale"]; up == nil || up.Megapixels != 4 || up.SuccessRate != 100 {
		t.Errorf("upscale stats = %+v", up)
	}
}

func TestStore_RecentJobsWraps(t *testing.T) {
	s := NewStore(StoreConfig{HistoryCapacity: 3}, time.Now())
	for i := 1; i <= 5; i++ {
		s.RecordJob(job(fmt.Sprint(i), "restore", JobStatusSuccess, 0, 0))
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{0, nil},
		{2, []string{"4", "5"}},
		{3, []string{"3", "4", "5"}},
		{10, []string{"3", "4", "5"}},
	}
	for _, tt := range tests {
		got := s.RecentJobs(tt.limit)
		if len(got) != len(tt.want) {
			t.Errorf("RecentJobs(%d) returned %d jobs, want %d", tt.limit, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("RecentJobs(%d)[%d] = %s, want %s", tt.limit, i, got[i].ID, tt.want[i])
			}
		}
	}
	if s.JobStats().TotalProcessed != 5 {
		t.Error("totals should cover evicted jobs")
	}
}

func TestStore_SystemStatus(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	s := NewStore(StoreConfig{HistoryCapacity: 20, Version: "v1"}, start)

	st := s.SystemStatus()
	if st.Health != SystemHealthRunning || st.Version != "v1" || st.Uptime < time.Minute {
		t.Errorf("empty store status = %+v", st)
	}

	for i := 0; i < 3; i++ {
		s.RecordJob(JobRecord{ID: fmt.Sprint(i), Operation: "upscale", Status: JobStatusError, ErrorMsg: "model missing"})
	}
	st = s.SystemStatus()
	if st.Health != SystemHealthDegraded || st.LastError != "model missing" {
		t.Errorf("all-failed status = %+v", st)
	}

	s.RecordJob(job("ok", "upscale", JobStatusSuccess, 0, 0))
	if got := s.SystemStatus().Health; got != SystemHealthRunning {
		t.Errorf("health after a success = %s", got)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore(StoreConfig{HistoryCapacity: 10}, time.Now())
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.RecordJob(job(fmt.Sprintf("%d-%d", w, i), "restore", JobStatusSuccess, time.Millisecond, 1))
				_ = s.RecentJobs(5)
				_ = s.JobStats()
			}
		}(w)
	}
	wg.Wait()
	if got := s.JobStats().TotalProcessed; got != 400 {
		t.Errorf("TotalProcessed = %d, want 400", got)
	}
}

func TestNop(t *testing.T) {
	var c Collector = Nop{}
	c.RecordJob(job("x", "restore", JobStatusSuccess, 0, 0))
	if c.JobStats().TotalProcessed != 0 || len(c.RecentJobs(3)) != 0 {
		t.Error("Nop should keep nothing")
	}
	if c.SystemStatus().Health != SystemHealthStopped {
		t.Error("Nop health should be stopped")
	}
}
