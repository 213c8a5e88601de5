package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// Probe measures one health dimension and returns a HealthCheck. Probes must
// honor the context deadline; Run guards against the ones that do not.
type Probe interface {
	Name() string
	Execute(ctx context.Context) models.HealthCheck
}

// Run executes p with a hard timeout. A timeout or panic produces a critical
// HealthCheck for that probe instead of propagating, so a misbehaving probe
// can never abort the cycle.
func Run(ctx context.Context, p Probe, timeout time.Duration) models.HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan models.HealthCheck, 1)
	started := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- models.HealthCheck{
					Name:           p.Name(),
					Status:         models.StatusCritical,
					Message:        fmt.Sprintf("probe panicked: %v", r),
					ResponseTimeMs: float64(time.Since(started).Milliseconds()),
					LastChecked:    time.Now(),
				}
			}
		}()
		done <- p.Execute(ctx)
	}()

	select {
	case check := <-done:
		return check
	case <-ctx.Done():
		return models.HealthCheck{
			Name:           p.Name(),
			Status:         models.StatusCritical,
			Message:        fmt.Sprintf("probe timed out after %s", timeout),
			ResponseTimeMs: float64(time.Since(started).Milliseconds()),
			LastChecked:    time.Now(),
		}
	}
}
