package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// InstanceReport is one instance's contribution to the fleet overview.
type InstanceReport struct {
	Name      string         `json:"name"`
	Weight    float64        `json:"weight"`
	Status    models.Status  `json:"status"`
	ErrorRate float64        `json:"errorRate"`
	Alerts    []models.Alert `json:"alerts,omitempty"`
	Reachable bool           `json:"reachable"`
}

// Overview is the weighted fleet summary served to dashboards.
type Overview struct {
	Score     float64          `json:"score"`
	Label     string           `json:"label"`
	Instances []InstanceReport `json:"instances"`
	Alerts    []models.Alert   `json:"alerts"`
	Timestamp time.Time        `json:"timestamp"`
}

// Score computes the weighted fleet health score. Each instance contributes
// a share of its weight based on its success rate: 95%+ earns the full
// weight, 90%+ three quarters, 80%+ half, anything lower a quarter.
func Score(reports []InstanceReport) float64 {
	var score, totalWeight float64
	for _, r := range reports {
		totalWeight += r.Weight
		successRate := 100 - r.ErrorRate
		switch {
		case successRate >= 95:
			score += r.Weight
		case successRate >= 90:
			score += r.Weight * 0.75
		case successRate >= 80:
			score += r.Weight * 0.5
		default:
			score += r.Weight * 0.25
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return score / totalWeight * 100
}

// Label maps a fleet score to its dashboard label.
func Label(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 80:
		return "good"
	case score >= 70:
		return "fair"
	case score >= 50:
		return "poor"
	default:
		return "critical"
	}
}

// MergeAlerts combines per-instance alerts into one list, tagging each alert
// with its instance and ordering by severity (critical first), newest first
// within a severity.
func MergeAlerts(reports []InstanceReport) []models.Alert {
	var merged []models.Alert
	for _, r := range reports {
		for _, a := range r.Alerts {
			a.Tags = append(append([]string{}, a.Tags...), "instance:"+r.Name)
			merged = append(merged, a)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		ri, rj := models.SeverityRank(merged[i].Severity), models.SeverityRank(merged[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	return merged
}

// Aggregator polls sibling instances and folds their health into one fleet
// overview. Exactly one configured instance, the one matching the configured
// local name and carrying no URL, represents this process and is filled in
// through SetLocal; every other instance must be polled over its URL.
type Aggregator struct {
	localName string
	instances []config.InstanceConfig
	client    *http.Client
	log       *logrus.Logger

	mu    sync.RWMutex
	local InstanceReport
}

func NewAggregator(cfg config.AggregateConfig, log *logrus.Logger) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}

	// URL-less instances other than the local one can never report; declaring
	// them is a config mistake, so they are dropped up front.
	instances := make([]config.InstanceConfig, 0, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		if inst.URL == "" && inst.Name != cfg.LocalInstance {
			log.WithField("instance", inst.Name).Warn("instance has no url and is not the local instance, ignoring")
			continue
		}
		instances = append(instances, inst)
	}

	return &Aggregator{
		localName: cfg.LocalInstance,
		instances: instances,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// SetLocal records the local instance's latest report, matched by name
// against the configured instance list.
func (g *Aggregator) SetLocal(report InstanceReport) {
	g.mu.Lock()
	g.local = report
	g.mu.Unlock()
}

// Overview fetches every remote instance concurrently and computes the
// weighted score. Unreachable instances count as fully failing.
func (g *Aggregator) Overview(ctx context.Context) Overview {
	g.mu.RLock()
	local := g.local
	g.mu.RUnlock()

	reports := make([]InstanceReport, len(g.instances))
	var wg sync.WaitGroup
	for i, inst := range g.instances {
		if inst.URL == "" && inst.Name == g.localName {
			local.Name = inst.Name
			local.Weight = inst.Weight
			local.Reachable = true
			reports[i] = local
			continue
		}
		wg.Add(1)
		go func(i int, inst config.InstanceConfig) {
			defer wg.Done()
			reports[i] = g.fetch(ctx, inst)
		}(i, inst)
	}
	wg.Wait()

	score := Score(reports)
	return Overview{
		Score:     score,
		Label:     Label(score),
		Instances: reports,
		Alerts:    MergeAlerts(reports),
		Timestamp: time.Now(),
	}
}

type remoteHealth struct {
	Status  models.Status `json:"status"`
	Metrics struct {
		API struct {
			ErrorRate float64 `json:"errorRate"`
		} `json:"api"`
	} `json:"metrics"`
}

// fetch pulls /api/v1/health and /api/v1/alerts from a sibling instance. An
// unreachable sibling yields a critical, 100% error-rate report so it drags
// the fleet score down instead of silently vanishing.
func (g *Aggregator) fetch(ctx context.Context, inst config.InstanceConfig) InstanceReport {
	report := InstanceReport{
		Name:      inst.Name,
		Weight:    inst.Weight,
		Status:    models.StatusCritical,
		ErrorRate: 100,
	}

	var health remoteHealth
	if err := g.getJSON(ctx, inst.URL+"/api/v1/health", &health); err != nil {
		g.log.WithField("instance", inst.Name).Warnf("instance unreachable: %v", err)
		return report
	}
	report.Reachable = true
	report.Status = health.Status
	report.ErrorRate = health.Metrics.API.ErrorRate

	var alertsResp struct {
		Alerts []models.Alert `json:"alerts"`
	}
	if err := g.getJSON(ctx, inst.URL+"/api/v1/alerts?resolved=false", &alertsResp); err != nil {
		g.log.WithField("instance", inst.Name).Warnf("failed to fetch instance alerts: %v", err)
		return report
	}
	report.Alerts = alertsResp.Alerts
	return report
}

func (g *Aggregator) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
