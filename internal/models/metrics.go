package models

import (
	"time"

	"gorm.io/gorm"
)

type DatabaseStatus string

const (
	DatabaseConnected    DatabaseStatus = "connected"
	DatabaseDisconnected DatabaseStatus = "disconnected"
	DatabaseSlow         DatabaseStatus = "slow"
	DatabaseUnknown      DatabaseStatus = "unknown"
)

type CPUMetrics struct {
	Usage float64   `json:"usage"`
	Load  []float64 `json:"load"`
}

type MemoryMetrics struct {
	Used       uint64  `json:"used"`
	Total      uint64  `json:"total"`
	Percentage float64 `json:"percentage"`
}

type StorageMetrics struct {
	Used       uint64  `json:"used"`
	Total      uint64  `json:"total"`
	Percentage float64 `json:"percentage"`
}

type NetworkMetrics struct {
	Inbound  float64 `json:"inbound"`
	Outbound float64 `json:"outbound"`
}

type DatabaseMetrics struct {
	Connections int            `json:"connections"`
	QueryTimeMs float64        `json:"queryTime"`
	Status      DatabaseStatus `json:"status"`
}

type APIMetrics struct {
	ResponseTimeMs    float64 `json:"responseTime"`
	ErrorRatePct      float64 `json:"errorRate"`
	RequestsPerMinute int     `json:"requestsPerMinute"`
}

// SystemMetrics is the numeric resource/application snapshot taken once per
// scheduler cycle.
type SystemMetrics struct {
	CPU      CPUMetrics      `json:"cpu"`
	Memory   MemoryMetrics   `json:"memory"`
	Storage  StorageMetrics  `json:"storage"`
	Network  NetworkMetrics  `json:"network"`
	Database DatabaseMetrics `json:"database"`
	API      APIMetrics      `json:"api"`
}

// DefaultSystemMetrics is the zero-value fallback used when the metrics source
// fails; dashboards render it as "unknown" rather than crashing.
func DefaultSystemMetrics() SystemMetrics {
	return SystemMetrics{
		CPU:      CPUMetrics{Load: []float64{0, 0, 0}},
		Database: DatabaseMetrics{Status: DatabaseUnknown},
	}
}

// PerformanceMetrics is the unit stored in history: one cycle's metrics plus
// health-check results. OverallStatus is derived from the snapshot's own
// contents and never set independently.
type PerformanceMetrics struct {
	Timestamp     time.Time     `json:"timestamp"`
	Metrics       SystemMetrics `json:"metrics"`
	HealthChecks  []HealthCheck `json:"healthChecks"`
	OverallStatus Status        `json:"overallStatus"`
}

// SnapshotRecord is the durable audit row for one snapshot. Persistence is
// best-effort; the in-memory ring buffer stays authoritative.
type SnapshotRecord struct {
	gorm.Model
	Timestamp     time.Time `json:"timestamp"`
	OverallStatus string    `json:"overall_status"`
	Payload       string    `json:"payload"`
}
