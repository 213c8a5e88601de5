package aggregate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

func TestScoreWeightsByErrorRate(t *testing.T) {
	reports := []InstanceReport{
		{Name: "production", Weight: 40, ErrorRate: 0},
		{Name: "realtime", Weight: 30, ErrorRate: 15},
		{Name: "backup", Weight: 30, ErrorRate: 2},
	}

	// 40 full + 30 at half + 30 full = 85
	assert.InDelta(t, 85.0, Score(reports), 0.001)
	assert.Equal(t, "good", Label(Score(reports)))
}

func TestScoreBuckets(t *testing.T) {
	cases := []struct {
		errorRate float64
		expected  float64
	}{
		{0, 100},
		{4, 100},
		{7, 75},
		{15, 50},
		{40, 25},
	}
	for _, tc := range cases {
		got := Score([]InstanceReport{{Weight: 10, ErrorRate: tc.errorRate}})
		assert.InDelta(t, tc.expected, got, 0.001, "error rate %.0f", tc.errorRate)
	}
}

func TestScoreEmpty(t *testing.T) {
	assert.Zero(t, Score(nil))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "excellent", Label(95))
	assert.Equal(t, "excellent", Label(90))
	assert.Equal(t, "good", Label(85))
	assert.Equal(t, "fair", Label(75))
	assert.Equal(t, "poor", Label(55))
	assert.Equal(t, "critical", Label(30))
}

func TestMergeAlertsOrdersBySeverityThenTime(t *testing.T) {
	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	reports := []InstanceReport{
		{
			Name: "production",
			Alerts: []models.Alert{
				{ID: "low", Severity: models.SeverityLow, Timestamp: newer},
				{ID: "crit-old", Severity: models.SeverityCritical, Timestamp: older},
			},
		},
		{
			Name: "backup",
			Alerts: []models.Alert{
				{ID: "crit-new", Severity: models.SeverityCritical, Timestamp: newer},
			},
		},
	}

	merged := MergeAlerts(reports)
	require.Len(t, merged, 3)
	assert.Equal(t, "crit-new", merged[0].ID)
	assert.Equal(t, "crit-old", merged[1].ID)
	assert.Equal(t, "low", merged[2].ID)
	assert.Contains(t, merged[0].Tags, "instance:backup")
	assert.Contains(t, merged[2].Tags, "instance:production")
}

func TestLocalInstanceCountedOnce(t *testing.T) {
	// all three instances URL-less, as in the default config: only the one
	// matching local_instance may stand in for this process
	g := NewAggregator(config.AggregateConfig{
		LocalInstance: "production",
		Instances: []config.InstanceConfig{
			{Name: "production", Weight: 40},
			{Name: "realtime", Weight: 30},
			{Name: "backup", Weight: 30},
		},
	}, nil)

	g.SetLocal(InstanceReport{
		Status:    models.StatusHealthy,
		ErrorRate: 0,
		Alerts:    []models.Alert{{ID: "a1", Severity: models.SeverityCritical}},
	})

	overview := g.Overview(context.Background())
	require.Len(t, overview.Instances, 1, "URL-less siblings must not impersonate the local process")
	assert.Equal(t, "production", overview.Instances[0].Name)

	require.Len(t, overview.Alerts, 1, "a local alert must appear exactly once in the merged list")
	assert.Equal(t, []string{"instance:production"}, overview.Alerts[0].Tags)

	assert.InDelta(t, 100.0, overview.Score, 0.001)
}

func TestOverviewPollsRemoteInstances(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/health":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"metrics": map[string]interface{}{
					"api": map[string]interface{}{"errorRate": 2.0},
				},
			})
		case "/api/v1/alerts":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"alerts": []models.Alert{{ID: "r1", Severity: models.SeverityHigh}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer remote.Close()

	g := NewAggregator(config.AggregateConfig{
		LocalInstance: "production",
		Instances: []config.InstanceConfig{
			{Name: "production", Weight: 40},
			{Name: "realtime", Weight: 30, URL: remote.URL},
			{Name: "backup", Weight: 30, URL: "http://127.0.0.1:1"},
		},
	}, nil)

	g.SetLocal(InstanceReport{Status: models.StatusHealthy, ErrorRate: 0})

	overview := g.Overview(context.Background())
	require.Len(t, overview.Instances, 3)

	local, remoteReport, unreachable := overview.Instances[0], overview.Instances[1], overview.Instances[2]
	assert.Equal(t, "production", local.Name)
	assert.True(t, local.Reachable)

	assert.True(t, remoteReport.Reachable)
	assert.Equal(t, models.StatusHealthy, remoteReport.Status)
	assert.InDelta(t, 2.0, remoteReport.ErrorRate, 0.001)
	require.Len(t, remoteReport.Alerts, 1)

	assert.False(t, unreachable.Reachable)
	assert.Equal(t, models.StatusCritical, unreachable.Status)
	assert.Equal(t, 100.0, unreachable.ErrorRate)

	// 40 full + 30 full + 30 quarter = 77.5
	assert.InDelta(t, 77.5, overview.Score, 0.001)
	assert.Equal(t, "fair", overview.Label)
	require.Len(t, overview.Alerts, 1)
	assert.Contains(t, overview.Alerts[0].Tags, "instance:realtime")
}
