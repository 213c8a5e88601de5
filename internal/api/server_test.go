package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylxai/hafiportrait-monitor/internal/aggregate"
	"github.com/ylxai/hafiportrait-monitor/internal/alert"
	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
	"github.com/ylxai/hafiportrait-monitor/internal/monitor"
	"github.com/ylxai/hafiportrait-monitor/internal/store"
	"github.com/ylxai/hafiportrait-monitor/internal/ws"
)

type staticSource struct{}

func (staticSource) Collect(context.Context) (models.SystemMetrics, error) {
	return models.DefaultSystemMetrics(), nil
}

func newTestServer(t *testing.T, jwtSecret string) (*Server, *store.MetricsStore, *alert.Manager) {
	t.Helper()

	st := store.NewMetricsStore(10, nil, nil)
	manager := alert.NewManager(alert.ManagerOptions{})
	t.Cleanup(manager.Close)

	engine := monitor.NewEngine(monitor.Options{
		Source:    staticSource{},
		Store:     st,
		Evaluator: alert.NewEvaluator(config.Thresholds{CPUCritical: 90}, nil, nil),
		Manager:   manager,
	})

	aggregator := aggregate.NewAggregator(config.AggregateConfig{
		LocalInstance: "production",
		Instances:     []config.InstanceConfig{{Name: "production", Weight: 100}},
	}, nil)

	server := NewServer(engine, st, manager, aggregator, ws.NewHub(nil), jwtSecret, nil)
	return server, st, manager
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	parsed := map[string]json.RawMessage{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &parsed)
	}
	return rec, parsed
}

func TestHealthBeforeFirstCycle(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	rec, body := doJSON(t, s, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.Status
	require.NoError(t, json.Unmarshal(body["status"], &status))
	assert.Equal(t, models.StatusUnknown, status)
}

func TestHealthAfterSnapshot(t *testing.T) {
	s, st, _ := newTestServer(t, "")

	st.Append(models.PerformanceMetrics{
		Timestamp:     time.Now(),
		Metrics:       models.DefaultSystemMetrics(),
		OverallStatus: models.StatusHealthy,
	})

	rec, body := doJSON(t, s, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.Status
	require.NoError(t, json.Unmarshal(body["status"], &status))
	assert.Equal(t, models.StatusHealthy, status)
}

func TestAlertsBadResolvedParam(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	rec, _ := doJSON(t, s, http.MethodGet, "/api/v1/alerts?resolved=banana", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertsFilter(t *testing.T) {
	s, _, manager := newTestServer(t, "")

	_, created := manager.CreateAlert(alert.Spec{
		Title: "x", Severity: models.SeverityCritical,
		Category: models.CategorySystem, Source: "test",
	})
	require.True(t, created)

	rec, body := doJSON(t, s, http.MethodGet, "/api/v1/alerts?severity=critical", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []models.Alert
	require.NoError(t, json.Unmarshal(body["alerts"], &alerts))
	require.Len(t, alerts, 1)

	rec, body = doJSON(t, s, http.MethodGet, "/api/v1/alerts?severity=low", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(body["alerts"], &alerts))
	assert.Empty(t, alerts)
}

func TestManualHealthCheck(t *testing.T) {
	s, st, _ := newTestServer(t, "")

	rec, _ := doJSON(t, s, http.MethodPost, "/api/v1/monitoring", `{"action":"health-check"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok := st.Latest()
	assert.True(t, ok, "manual check must store a snapshot")
}

func TestResolveUnknownAlertReportsFalse(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	rec, body := doJSON(t, s, http.MethodPost, "/api/v1/monitoring",
		`{"action":"resolve-alert","alertId":"nope"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var success bool
	require.NoError(t, json.Unmarshal(body["success"], &success))
	assert.False(t, success, "an unknown id is a boolean outcome, not an error")
}

func TestResolveAlert(t *testing.T) {
	s, _, manager := newTestServer(t, "")

	a, created := manager.CreateAlert(alert.Spec{
		Title: "x", Category: models.CategorySystem, Source: "test",
	})
	require.True(t, created)

	rec, body := doJSON(t, s, http.MethodPost, "/api/v1/monitoring",
		`{"action":"resolve-alert","alertId":"`+a.ID+`","resolvedBy":"tester"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var success bool
	require.NoError(t, json.Unmarshal(body["success"], &success))
	assert.True(t, success)

	got, ok := manager.Get(a.ID)
	require.True(t, ok)
	assert.True(t, got.Resolved)
	assert.Equal(t, "tester", got.ResolvedBy)
}

func TestTestAlertAction(t *testing.T) {
	s, _, manager := newTestServer(t, "")

	rec, body := doJSON(t, s, http.MethodPost, "/api/v1/monitoring", `{"action":"test-alert"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var a models.Alert
	require.NoError(t, json.Unmarshal(body["alert"], &a))
	_, ok := manager.Get(a.ID)
	assert.True(t, ok)
}

func TestUnknownActionReturns400(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	rec, _ := doJSON(t, s, http.MethodPost, "/api/v1/monitoring", `{"action":"reboot"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	s, _, _ := newTestServer(t, "super-secret")

	rec, _ := doJSON(t, s, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOverviewShape(t *testing.T) {
	s, st, manager := newTestServer(t, "")

	st.Append(models.PerformanceMetrics{
		Timestamp:     time.Now(),
		Metrics:       models.DefaultSystemMetrics(),
		OverallStatus: models.StatusHealthy,
	})
	a, created := manager.CreateAlert(alert.Spec{
		Title: "x", Severity: models.SeverityCritical,
		Category: models.CategorySystem, Source: "test",
	})
	require.True(t, created)
	require.True(t, manager.Resolve(a.ID, "tester"))

	rec, body := doJSON(t, s, http.MethodGet, "/api/v1/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.Status
	require.NoError(t, json.Unmarshal(body["status"], &status))
	assert.Equal(t, models.StatusHealthy, status)

	for _, key := range []string{"timestamp", "metrics", "healthChecks", "systemStats", "lastUpdated"} {
		assert.Contains(t, body, key)
	}

	var counters struct {
		Total    int `json:"total"`
		Critical int `json:"critical"`
		Resolved int `json:"resolved"`
	}
	require.NoError(t, json.Unmarshal(body["alerts"], &counters))
	assert.Equal(t, 1, counters.Total)
	assert.Equal(t, 1, counters.Critical)
	assert.Equal(t, 1, counters.Resolved)
}

func TestFleet(t *testing.T) {
	s, st, _ := newTestServer(t, "")

	st.Append(models.PerformanceMetrics{
		Timestamp:     time.Now(),
		Metrics:       models.DefaultSystemMetrics(),
		OverallStatus: models.StatusHealthy,
	})

	rec, body := doJSON(t, s, http.MethodGet, "/api/v1/fleet", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var score float64
	require.NoError(t, json.Unmarshal(body["score"], &score))
	assert.Equal(t, 100.0, score)

	var label string
	require.NoError(t, json.Unmarshal(body["label"], &label))
	assert.Equal(t, "excellent", label)
}

func TestMetricsIncludesCurrent(t *testing.T) {
	s, st, _ := newTestServer(t, "")

	st.Append(models.PerformanceMetrics{
		Timestamp:     time.Now(),
		Metrics:       models.DefaultSystemMetrics(),
		OverallStatus: models.StatusHealthy,
	})

	rec, body := doJSON(t, s, http.MethodGet, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var current models.PerformanceMetrics
	require.NoError(t, json.Unmarshal(body["current"], &current))
	assert.Equal(t, models.StatusHealthy, current.OverallStatus)

	var history []models.PerformanceMetrics
	require.NoError(t, json.Unmarshal(body["history"], &history))
	assert.Len(t, history, 1)
}

func TestAlertsIncludesMetricsAndSummary(t *testing.T) {
	s, _, manager := newTestServer(t, "")

	_, created := manager.CreateAlert(alert.Spec{
		Title: "x", Severity: models.SeverityCritical,
		Category: models.CategorySystem, Source: "test",
	})
	require.True(t, created)

	rec, body := doJSON(t, s, http.MethodGet, "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "metrics")

	var summary struct {
		Total      int        `json:"total"`
		Unresolved int        `json:"unresolved"`
		Critical   int        `json:"critical"`
		LastAlert  *time.Time `json:"lastAlert"`
	}
	require.NoError(t, json.Unmarshal(body["summary"], &summary))
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Unresolved)
	assert.Equal(t, 1, summary.Critical)
	require.NotNil(t, summary.LastAlert)
}

func TestComputeTrends(t *testing.T) {
	history := []models.PerformanceMetrics{
		{Metrics: models.SystemMetrics{CPU: models.CPUMetrics{Usage: 10}, API: models.APIMetrics{ResponseTimeMs: 200}}},
		{Metrics: models.SystemMetrics{CPU: models.CPUMetrics{Usage: 10}, API: models.APIMetrics{ResponseTimeMs: 200}}},
		{Metrics: models.SystemMetrics{CPU: models.CPUMetrics{Usage: 50}, API: models.APIMetrics{ResponseTimeMs: 100}}},
		{Metrics: models.SystemMetrics{CPU: models.CPUMetrics{Usage: 50}, API: models.APIMetrics{ResponseTimeMs: 100}}},
	}

	trends := computeTrends(history)
	assert.Equal(t, TrendUp, trends["cpu"])
	assert.Equal(t, TrendDown, trends["responseTime"])
	assert.Equal(t, TrendStable, trends["memory"])
}

func TestComputeTrendsShortHistory(t *testing.T) {
	trends := computeTrends(nil)
	assert.Equal(t, TrendStable, trends["cpu"])
}
