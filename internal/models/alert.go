package models

import (
	"time"

	"gorm.io/gorm"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// SeverityRank orders severities for sorting, critical first.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}

type Category string

const (
	CategorySystem      Category = "system"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
	CategoryBusiness    Category = "business"
	CategoryUser        Category = "user"
)

// Alert is the mutable lifecycle entity owned by the alert manager. Creation
// time is immutable; only the escalation timer advances EscalationLevel and
// only explicit resolution sets the Resolved fields.
type Alert struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Message         string                 `json:"message"`
	Severity        Severity               `json:"severity"`
	Category        Category               `json:"category"`
	Source          string                 `json:"source"`
	Timestamp       time.Time              `json:"timestamp"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Resolved        bool                   `json:"resolved"`
	ResolvedAt      *time.Time             `json:"resolvedAt,omitempty"`
	ResolvedBy      string                 `json:"resolvedBy,omitempty"`
	EscalationLevel int                    `json:"escalationLevel"`
	Tags            []string               `json:"tags"`
}

// EscalationRule is one ordered tier of an alert's unresolved lifetime.
// Level 0 must have DelayMinutes == 0.
type EscalationRule struct {
	Level        int      `json:"level" mapstructure:"level"`
	DelayMinutes int      `json:"delay_minutes" mapstructure:"delay_minutes"`
	Channels     []string `json:"channels" mapstructure:"channels"`
	Recipients   []string `json:"recipients" mapstructure:"recipients"`
}

// AlertRule is static configuration loaded at startup; the engine never
// mutates rules at runtime.
type AlertRule struct {
	ID              string           `json:"id" mapstructure:"id"`
	Name            string           `json:"name" mapstructure:"name"`
	Condition       string           `json:"condition" mapstructure:"condition"`
	Threshold       float64          `json:"threshold" mapstructure:"threshold"`
	Severity        Severity         `json:"severity" mapstructure:"severity"`
	Category        Category         `json:"category" mapstructure:"category"`
	Enabled         bool             `json:"enabled" mapstructure:"enabled"`
	CooldownMinutes int              `json:"cooldown_minutes" mapstructure:"cooldown_minutes"`
	EscalationRules []EscalationRule `json:"escalation_rules" mapstructure:"escalation_rules"`
}

// AlertMetrics aggregates alert activity over a rolling 24-hour window.
// ResolvedAlerts counts currently-resolved alerts regardless of age.
type AlertMetrics struct {
	TotalAlerts           int            `json:"totalAlerts"`
	CriticalAlerts        int            `json:"criticalAlerts"`
	ResolvedAlerts        int            `json:"resolvedAlerts"`
	AverageResolutionTime float64        `json:"averageResolutionTime"`
	AlertsByCategory      map[string]int `json:"alertsByCategory"`
	AlertsBySeverity      map[string]int `json:"alertsBySeverity"`
}

// AlertRecord is the durable mirror of an Alert; writes are best-effort.
type AlertRecord struct {
	gorm.Model
	AlertID         string     `json:"alert_id" gorm:"uniqueIndex;not null"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	Severity        string     `json:"severity"`
	Category        string     `json:"category"`
	Source          string     `json:"source"`
	Timestamp       time.Time  `json:"timestamp"`
	Resolved        bool       `json:"resolved"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolvedBy      string     `json:"resolved_by"`
	EscalationLevel int        `json:"escalation_level"`
	Payload         string     `json:"payload"`
}
