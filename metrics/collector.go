package metrics

// Collector records jobs and reports aggregates. Implementations must be
// safe for concurrent use and return zero values when nothing is known.
type Collector interface {
	RecordJob(job JobRecord)
	JobStats() JobStats
	RecentJobs(limit int) []JobRecord
	SystemStatus() SystemStatus
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordJob(JobRecord)        {}
func (Nop) JobStats() JobStats         { return JobStats{ByOperation: map[string]*OperationStats{}} }
func (Nop) RecentJobs(int) []JobRecord { return []JobRecord{} }
func (Nop) SystemStatus() SystemStatus { return SystemStatus{Health: SystemHealthStopped} }

var _ Collector = Nop{}
