package reporter

import "time"

// BenchmarkRun is one top-level invocation persisted by the store reporter.
type BenchmarkRun struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	Mode         string        `gorm:"not null" json:"mode"`
	Hostname     string        `json:"hostname"`
	StartedAt    time.Time     `gorm:"not null;index" json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Targets      []RunTarget   `gorm:"foreignKey:BenchmarkRunID;constraint:OnDelete:CASCADE" json:"targets"`
	Measurements []Measurement `gorm:"foreignKey:BenchmarkRunID;constraint:OnDelete:CASCADE" json:"measurements"`
}

// RunTarget labels a run ordinal with the target or commit it measured.
type RunTarget struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	BenchmarkRunID string `gorm:"size:36;not null;uniqueIndex:idx_run_target" json:"benchmark_run_id"`
	Run            int    `gorm:"not null;uniqueIndex:idx_run_target" json:"run"`
	Label          string `json:"label"`
}

// Measurement is a single statement latency.
type Measurement struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	BenchmarkRunID string  `gorm:"size:36;not null;index" json:"benchmark_run_id"`
	Experiment     string  `gorm:"not null;index" json:"experiment"`
	Run            int     `gorm:"not null" json:"run"`
	Query          int     `gorm:"not null" json:"query"`
	LatencyMs      float64 `gorm:"not null" json:"latency_ms"`
}
