package probe

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

// StorageProbe reports filesystem usage for the photo storage volume.
type StorageProbe struct {
	path        string
	warningPct  float64
	criticalPct float64
}

func NewStorageProbe(path string, warningPct, criticalPct float64) *StorageProbe {
	if path == "" {
		path = "/"
	}
	return &StorageProbe{path: path, warningPct: warningPct, criticalPct: criticalPct}
}

func (p *StorageProbe) Name() string { return "storage-service" }

func (p *StorageProbe) Execute(_ context.Context) models.HealthCheck {
	started := time.Now()

	var stat syscall.Statfs_t
	if err := syscall.Statfs(p.path, &stat); err != nil {
		return models.HealthCheck{
			Name:           p.Name(),
			Status:         models.StatusCritical,
			Message:        fmt.Sprintf("storage check failed: %v", err),
			ResponseTimeMs: float64(time.Since(started).Milliseconds()),
			LastChecked:    time.Now(),
		}
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	used := total - free
	percentage := 0.0
	if total > 0 {
		percentage = float64(used) / float64(total) * 100
	}

	status := models.StatusHealthy
	message := "storage service is healthy"
	switch {
	case percentage > p.criticalPct:
		status = models.StatusCritical
		message = "storage usage is critically high"
	case percentage > p.warningPct:
		status = models.StatusWarning
		message = "storage usage is high"
	}

	return models.HealthCheck{
		Name:           p.Name(),
		Status:         status,
		Message:        message,
		ResponseTimeMs: float64(time.Since(started).Milliseconds()),
		LastChecked:    time.Now(),
		Metadata: map[string]interface{}{
			"usagePercentage": percentage,
			"usedBytes":       used,
			"totalBytes":      total,
		},
	}
}
