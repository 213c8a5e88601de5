package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

func testThresholds() config.Thresholds {
	return config.Thresholds{
		CPUCritical:           90,
		CPUWarning:            70,
		MemoryCritical:        90,
		MemoryWarning:         80,
		StorageCritical:       95,
		StorageWarning:        85,
		ErrorRateCritical:     10,
		ErrorRateWarning:      5,
		ResponseTimeWarningMs: 1000,
		QueryTimeWarningMs:    1000,
	}
}

func metricsWith(mutate func(*models.SystemMetrics)) models.SystemMetrics {
	m := models.DefaultSystemMetrics()
	mutate(&m)
	return m
}

func TestOverallStatusHealthy(t *testing.T) {
	e := NewEvaluator(testThresholds(), nil, nil)

	status := e.OverallStatus(models.DefaultSystemMetrics(), nil)
	assert.Equal(t, models.StatusHealthy, status)
}

func TestOverallStatusCriticalThresholds(t *testing.T) {
	e := NewEvaluator(testThresholds(), nil, nil)

	cases := []struct {
		name   string
		mutate func(*models.SystemMetrics)
	}{
		{"cpu", func(m *models.SystemMetrics) { m.CPU.Usage = 95 }},
		{"memory", func(m *models.SystemMetrics) { m.Memory.Percentage = 91 }},
		{"storage", func(m *models.SystemMetrics) { m.Storage.Percentage = 96 }},
		{"error rate", func(m *models.SystemMetrics) { m.API.ErrorRatePct = 11 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, models.StatusCritical, e.OverallStatus(metricsWith(tc.mutate), nil))
		})
	}
}

func TestOverallStatusWarningThresholds(t *testing.T) {
	e := NewEvaluator(testThresholds(), nil, nil)

	cases := []struct {
		name   string
		mutate func(*models.SystemMetrics)
	}{
		{"cpu", func(m *models.SystemMetrics) { m.CPU.Usage = 75 }},
		{"memory", func(m *models.SystemMetrics) { m.Memory.Percentage = 81 }},
		{"response time", func(m *models.SystemMetrics) { m.API.ResponseTimeMs = 1500 }},
		{"query time", func(m *models.SystemMetrics) { m.Database.QueryTimeMs = 1200 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, models.StatusWarning, e.OverallStatus(metricsWith(tc.mutate), nil))
		})
	}
}

func TestOverallStatusCriticalCheckWins(t *testing.T) {
	e := NewEvaluator(testThresholds(), nil, nil)

	checks := []models.HealthCheck{
		{Name: "database-connection", Status: models.StatusCritical},
		{Name: "storage-service", Status: models.StatusHealthy},
	}
	assert.Equal(t, models.StatusCritical, e.OverallStatus(models.DefaultSystemMetrics(), checks))
}

func TestOverallStatusIsPure(t *testing.T) {
	e := NewEvaluator(testThresholds(), nil, nil)
	m := metricsWith(func(m *models.SystemMetrics) { m.CPU.Usage = 75 })

	first := e.OverallStatus(m, nil)
	second := e.OverallStatus(m, nil)
	assert.Equal(t, first, second)
}

func TestSetThresholdsTakesEffect(t *testing.T) {
	e := NewEvaluator(testThresholds(), nil, nil)
	m := metricsWith(func(m *models.SystemMetrics) { m.CPU.Usage = 75 })

	assert.Equal(t, models.StatusWarning, e.OverallStatus(m, nil))

	loose := testThresholds()
	loose.CPUWarning = 80
	e.SetThresholds(loose)
	assert.Equal(t, models.StatusHealthy, e.OverallStatus(m, nil))
}

func TestEvaluateDetectsViolation(t *testing.T) {
	rules := []models.AlertRule{
		{
			ID:        "high-error-rate",
			Name:      "High Error Rate",
			Condition: "error_rate > threshold",
			Threshold: 5,
			Severity:  models.SeverityCritical,
			Category:  models.CategorySystem,
			Enabled:   true,
		},
	}
	e := NewEvaluator(testThresholds(), rules, nil)

	snapshot := models.PerformanceMetrics{
		Metrics: metricsWith(func(m *models.SystemMetrics) { m.API.ErrorRatePct = 15 }),
	}
	violations := e.Evaluate(snapshot)
	require.Len(t, violations, 1)
	assert.Equal(t, "high-error-rate", violations[0].Rule.ID)
	assert.Equal(t, 15.0, violations[0].Value)
}

func TestEvaluateFirstMatchPerCategory(t *testing.T) {
	rules := []models.AlertRule{
		{
			ID: "cpu-high", Condition: "cpu_usage > threshold", Threshold: 50,
			Severity: models.SeverityHigh, Category: models.CategorySystem, Enabled: true,
		},
		{
			ID: "storage-high", Condition: "storage_usage > threshold", Threshold: 50,
			Severity: models.SeverityMedium, Category: models.CategorySystem, Enabled: true,
		},
		{
			ID: "slow-responses", Condition: "avg_response_time > threshold", Threshold: 100,
			Severity: models.SeverityHigh, Category: models.CategoryPerformance, Enabled: true,
		},
	}
	e := NewEvaluator(testThresholds(), rules, nil)

	snapshot := models.PerformanceMetrics{
		Metrics: metricsWith(func(m *models.SystemMetrics) {
			m.CPU.Usage = 80
			m.Storage.Percentage = 80
			m.API.ResponseTimeMs = 500
		}),
	}
	violations := e.Evaluate(snapshot)
	require.Len(t, violations, 2)
	assert.Equal(t, "cpu-high", violations[0].Rule.ID)
	assert.Equal(t, "slow-responses", violations[1].Rule.ID)
}

func TestEvaluateSkipsDisabledAndUnderivable(t *testing.T) {
	rules := []models.AlertRule{
		{
			ID: "disabled", Condition: "cpu_usage > threshold", Threshold: 0,
			Category: models.CategorySystem, Enabled: false,
		},
		{
			ID: "failed-uploads", Condition: "upload_failure_rate > threshold", Threshold: 10,
			Category: models.CategoryBusiness, Enabled: true,
		},
	}
	e := NewEvaluator(testThresholds(), rules, nil)

	snapshot := models.PerformanceMetrics{
		Metrics: metricsWith(func(m *models.SystemMetrics) { m.CPU.Usage = 99 }),
	}
	assert.Empty(t, e.Evaluate(snapshot))
}

func TestConditionOperators(t *testing.T) {
	assert.True(t, conditionHolds("cpu_usage > threshold", 10, 5))
	assert.False(t, conditionHolds("cpu_usage > threshold", 5, 5))
	assert.True(t, conditionHolds("cpu_usage >= threshold", 5, 5))
	assert.True(t, conditionHolds("cpu_usage < threshold", 3, 5))
	assert.True(t, conditionHolds("cpu_usage <= threshold", 5, 5))
}
