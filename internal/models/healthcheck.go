package models

import "time"

// Status is the health state of a single check or of the whole system.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// HealthCheck is the result of one probe execution. It is immutable once
// produced; the next cycle supersedes it with a fresh value for the same name.
type HealthCheck struct {
	Name           string                 `json:"name"`
	Status         Status                 `json:"status"`
	Message        string                 `json:"message"`
	ResponseTimeMs float64                `json:"responseTime,omitempty"`
	LastChecked    time.Time              `json:"lastChecked"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
