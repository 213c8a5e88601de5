package probe

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

const slowPingMs = 500

// DatabaseProbe pings the database connection and reports pool statistics.
type DatabaseProbe struct {
	db *gorm.DB
}

func NewDatabaseProbe(db *gorm.DB) *DatabaseProbe {
	return &DatabaseProbe{db: db}
}

func (p *DatabaseProbe) Name() string { return "database-connection" }

func (p *DatabaseProbe) Execute(ctx context.Context) models.HealthCheck {
	started := time.Now()

	sqlDB, err := p.db.DB()
	if err != nil {
		return p.critical(started, fmt.Sprintf("database handle unavailable: %v", err))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return p.critical(started, fmt.Sprintf("database ping failed: %v", err))
	}

	elapsed := float64(time.Since(started).Milliseconds())
	stats := sqlDB.Stats()

	status := models.StatusHealthy
	message := "database connection is healthy"
	if elapsed >= slowPingMs {
		status = models.StatusWarning
		message = "database response time is slow"
	}

	return models.HealthCheck{
		Name:           p.Name(),
		Status:         status,
		Message:        message,
		ResponseTimeMs: elapsed,
		LastChecked:    time.Now(),
		Metadata: map[string]interface{}{
			"connectionPool": stats.OpenConnections,
			"inUse":          stats.InUse,
			"idle":           stats.Idle,
		},
	}
}

func (p *DatabaseProbe) critical(started time.Time, message string) models.HealthCheck {
	return models.HealthCheck{
		Name:           p.Name(),
		Status:         models.StatusCritical,
		Message:        message,
		ResponseTimeMs: float64(time.Since(started).Milliseconds()),
		LastChecked:    time.Now(),
	}
}
