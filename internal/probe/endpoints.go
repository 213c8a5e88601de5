package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// Target is one URL checked by an endpoint probe.
type Target struct {
	Name string
	URL  string
}

// endpointProbe checks a set of HTTP targets. All targets failing is
// critical, some failing is a warning.
type endpointProbe struct {
	name    string
	targets []Target
	client  *http.Client
}

// NewAPIProbe checks the platform's own API endpoints.
func NewAPIProbe(endpoints []string) Probe {
	targets := make([]Target, 0, len(endpoints))
	for _, e := range endpoints {
		targets = append(targets, Target{Name: e, URL: e})
	}
	return &endpointProbe{
		name:    "api-endpoints",
		targets: targets,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// NewExternalServicesProbe checks third-party service reachability.
func NewExternalServicesProbe(targets []Target) Probe {
	return &endpointProbe{
		name:    "external-services",
		targets: targets,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (p *endpointProbe) Name() string { return p.name }

func (p *endpointProbe) Execute(ctx context.Context) models.HealthCheck {
	started := time.Now()

	if len(p.targets) == 0 {
		return models.HealthCheck{
			Name:        p.name,
			Status:      models.StatusUnknown,
			Message:     "no targets configured",
			LastChecked: time.Now(),
		}
	}

	type result struct {
		target Target
		err    error
	}
	results := make(chan result, len(p.targets))
	for _, t := range p.targets {
		go func(t Target) {
			results <- result{target: t, err: p.check(ctx, t.URL)}
		}(t)
	}

	failed := 0
	var firstErr error
	for range p.targets {
		r := <-results
		if r.err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", r.target.Name, r.err)
			}
		}
	}

	total := len(p.targets)
	status := models.StatusHealthy
	message := fmt.Sprintf("all %d targets are healthy", total)
	switch {
	case failed == total:
		status = models.StatusCritical
		message = fmt.Sprintf("%d/%d targets are failing: %v", failed, total, firstErr)
	case failed > 0:
		status = models.StatusWarning
		message = fmt.Sprintf("%d/%d targets are failing: %v", failed, total, firstErr)
	}

	return models.HealthCheck{
		Name:           p.name,
		Status:         status,
		Message:        message,
		ResponseTimeMs: float64(time.Since(started).Milliseconds()),
		LastChecked:    time.Now(),
		Metadata: map[string]interface{}{
			"totalTargets":  total,
			"failedTargets": failed,
			"successRate":   float64(total-failed) / float64(total) * 100,
		},
	}
}

func (p *endpointProbe) check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
