package alert

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// Violation pairs a fired rule with the metric value that crossed its
// threshold.
type Violation struct {
	Rule  models.AlertRule
	Value float64
}

// Evaluator derives overall status from a snapshot and enumerates rule
// violations. Thresholds may be swapped at runtime via SetThresholds; rules
// are fixed at construction.
type Evaluator struct {
	mu         sync.RWMutex
	thresholds config.Thresholds
	rules      []models.AlertRule
	log        *logrus.Logger
}

func NewEvaluator(thresholds config.Thresholds, rules []models.AlertRule, log *logrus.Logger) *Evaluator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Evaluator{thresholds: thresholds, rules: rules, log: log}
}

// SetThresholds replaces the status thresholds, used by config hot reload.
func (e *Evaluator) SetThresholds(t config.Thresholds) {
	e.mu.Lock()
	e.thresholds = t
	e.mu.Unlock()
}

// OverallStatus is a pure function of the snapshot's own metrics and health
// checks: critical trumps warning trumps healthy, first match wins.
func (e *Evaluator) OverallStatus(m models.SystemMetrics, checks []models.HealthCheck) models.Status {
	e.mu.RLock()
	t := e.thresholds
	e.mu.RUnlock()

	for _, check := range checks {
		if check.Status == models.StatusCritical {
			return models.StatusCritical
		}
	}
	if m.CPU.Usage > t.CPUCritical ||
		m.Memory.Percentage > t.MemoryCritical ||
		m.Storage.Percentage > t.StorageCritical ||
		m.API.ErrorRatePct > t.ErrorRateCritical {
		return models.StatusCritical
	}

	for _, check := range checks {
		if check.Status == models.StatusWarning {
			return models.StatusWarning
		}
	}
	if m.CPU.Usage > t.CPUWarning ||
		m.Memory.Percentage > t.MemoryWarning ||
		m.Storage.Percentage > t.StorageWarning ||
		m.API.ErrorRatePct > t.ErrorRateWarning ||
		m.API.ResponseTimeMs > t.ResponseTimeWarningMs ||
		m.Database.QueryTimeMs > t.QueryTimeWarningMs {
		return models.StatusWarning
	}

	return models.StatusHealthy
}

// Evaluate checks every enabled rule against the snapshot in configuration
// order and stops at the first match per category, so one cycle raises at
// most one alert-worthy violation per category.
func (e *Evaluator) Evaluate(snapshot models.PerformanceMetrics) []Violation {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	var violations []Violation
	matched := make(map[models.Category]bool)

	for _, rule := range rules {
		if !rule.Enabled || matched[rule.Category] {
			continue
		}
		value, ok := extractValue(rule.Condition, snapshot.Metrics)
		if !ok {
			continue
		}
		if conditionHolds(rule.Condition, value, rule.Threshold) {
			violations = append(violations, Violation{Rule: rule, Value: value})
			matched[rule.Category] = true
		}
	}

	return violations
}

// extractValue resolves the metric named by a symbolic condition such as
// "error_rate > threshold". Conditions over metrics the snapshot does not
// carry (upload failures, login attempts) are fed by their own monitors
// through CreateAlert and report false here.
func extractValue(condition string, m models.SystemMetrics) (float64, bool) {
	fields := strings.Fields(condition)
	if len(fields) == 0 {
		return 0, false
	}
	switch fields[0] {
	case "cpu_usage":
		return m.CPU.Usage, true
	case "memory_usage":
		return m.Memory.Percentage, true
	case "storage_usage":
		return m.Storage.Percentage, true
	case "error_rate":
		return m.API.ErrorRatePct, true
	case "avg_response_time":
		return m.API.ResponseTimeMs, true
	case "query_time":
		return m.Database.QueryTimeMs, true
	default:
		return 0, false
	}
}

func conditionHolds(condition string, value, threshold float64) bool {
	fields := strings.Fields(condition)
	op := ">"
	if len(fields) >= 2 {
		op = fields[1]
	}
	switch op {
	case "<":
		return value < threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		return value > threshold
	}
}
