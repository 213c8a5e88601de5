package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/ylxai/hafiportrait-monitor/internal/alert"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
	"github.com/ylxai/hafiportrait-monitor/internal/probe"
	"github.com/ylxai/hafiportrait-monitor/internal/store"
)

// ErrCycleInProgress is returned when a manual check is requested while a
// cycle is already running. The caller retries after the current cycle ends.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// Options wires an Engine. Interval and ProbeTimeout default to 60s and 10s.
type Options struct {
	Interval      time.Duration
	ProbeTimeout  time.Duration
	MaxConcurrent int64
	Source        MetricsSource
	Probes        []probe.Probe
	Store         *store.MetricsStore
	Evaluator     *alert.Evaluator
	Manager       *alert.Manager
	Log           *logrus.Logger
}

// Engine drives the periodic monitoring cycle: collect system metrics, fan
// out health probes, derive overall status, store the snapshot and hand rule
// violations to the alert manager. At most one cycle runs at a time.
type Engine struct {
	interval     time.Duration
	probeTimeout time.Duration
	sem          *semaphore.Weighted
	source       MetricsSource
	probes       []probe.Probe
	store        *store.MetricsStore
	evaluator    *alert.Evaluator
	manager      *alert.Manager
	log          *logrus.Logger

	inCycle atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	statsMu     sync.Mutex
	startedAt   time.Time
	totalCycles int64
	sumCycleMs  float64
}

func NewEngine(opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 10 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Engine{
		interval:     opts.Interval,
		probeTimeout: opts.ProbeTimeout,
		sem:          semaphore.NewWeighted(opts.MaxConcurrent),
		source:       opts.Source,
		probes:       opts.Probes,
		store:        opts.Store,
		evaluator:    opts.Evaluator,
		manager:      opts.Manager,
		log:          opts.Log,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		startedAt:    time.Now(),
	}
}

// Start runs one cycle immediately, then one per interval until Stop is
// called or ctx is canceled. Cycle failures are logged and never end the
// loop.
func (e *Engine) Start(ctx context.Context) {
	e.startedAt = time.Now()
	go func() {
		defer close(e.done)

		e.runLogged(ctx)

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.runLogged(ctx)
			case <-e.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the periodic loop and waits for an in-flight cycle to finish.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

func (e *Engine) runLogged(ctx context.Context) {
	if _, err := e.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
		e.log.WithError(err).Error("monitoring cycle failed")
	}
}

// RunCycle executes one full monitoring cycle and returns the stored
// snapshot. A second caller while a cycle is in flight gets
// ErrCycleInProgress.
func (e *Engine) RunCycle(ctx context.Context) (models.PerformanceMetrics, error) {
	if !e.inCycle.CompareAndSwap(false, true) {
		return models.PerformanceMetrics{}, ErrCycleInProgress
	}
	defer e.inCycle.Store(false)

	started := time.Now()

	metrics, err := e.source.Collect(ctx)
	if err != nil {
		e.log.WithError(err).Warn("system metrics collection failed, using defaults")
		metrics = models.DefaultSystemMetrics()
	}

	checks := e.runProbes(ctx)
	enrichMetrics(&metrics, checks)

	snapshot := models.PerformanceMetrics{
		Timestamp:    time.Now(),
		Metrics:      metrics,
		HealthChecks: checks,
	}
	snapshot.OverallStatus = e.evaluator.OverallStatus(metrics, checks)

	e.store.Append(snapshot)
	e.store.Persist()

	for _, v := range e.evaluator.Evaluate(snapshot) {
		if a, created := e.manager.HandleViolation(v); created {
			e.log.WithFields(logrus.Fields{
				"alert":    a.ID,
				"rule":     v.Rule.ID,
				"severity": a.Severity,
			}).Info("alert raised from rule violation")
		}
	}

	elapsed := time.Since(started)
	e.statsMu.Lock()
	e.totalCycles++
	e.sumCycleMs += float64(elapsed.Milliseconds())
	e.statsMu.Unlock()

	e.log.WithFields(logrus.Fields{
		"status":   snapshot.OverallStatus,
		"checks":   len(checks),
		"duration": elapsed.String(),
	}).Debug("monitoring cycle completed")

	return snapshot, nil
}

// runProbes executes every probe with bounded concurrency. Result order
// matches registration order regardless of completion order.
func (e *Engine) runProbes(ctx context.Context) []models.HealthCheck {
	checks := make([]models.HealthCheck, len(e.probes))
	var wg sync.WaitGroup
	for i, p := range e.probes {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			// non-completion is critical, same as a timeout
			checks[i] = models.HealthCheck{
				Name:        p.Name(),
				Status:      models.StatusCritical,
				Message:     "probe canceled before start",
				LastChecked: time.Now(),
			}
			continue
		}
		wg.Add(1)
		go func(i int, p probe.Probe) {
			defer wg.Done()
			defer e.sem.Release(1)
			checks[i] = probe.Run(ctx, p, e.probeTimeout)
		}(i, p)
	}
	wg.Wait()
	return checks
}

// enrichMetrics folds probe observations back into the numeric snapshot so
// threshold rules can see database latency and API error rates.
func enrichMetrics(m *models.SystemMetrics, checks []models.HealthCheck) {
	for _, check := range checks {
		switch check.Name {
		case "database-connection":
			m.Database.QueryTimeMs = check.ResponseTimeMs
			switch check.Status {
			case models.StatusHealthy:
				m.Database.Status = models.DatabaseConnected
			case models.StatusWarning:
				m.Database.Status = models.DatabaseSlow
			case models.StatusCritical:
				m.Database.Status = models.DatabaseDisconnected
			}
			if pool, ok := check.Metadata["connectionPool"].(int); ok {
				m.Database.Connections = pool
			}
		case "api-endpoints":
			m.API.ResponseTimeMs = check.ResponseTimeMs
			if rate, ok := check.Metadata["successRate"].(float64); ok {
				m.API.ErrorRatePct = 100 - rate
			}
		}
	}
}

// SystemStats summarizes the engine for the health endpoint.
type SystemStats struct {
	UptimeSeconds     float64 `json:"uptime"`
	TotalChecks       int64   `json:"totalChecks"`
	AvgCycleTimeMs    float64 `json:"avgCycleTime"`
	HealthyPercentage float64 `json:"healthyPercentage"`
}

// Stats reports uptime, cycle counters and the share of retained snapshots
// that were healthy.
func (e *Engine) Stats() SystemStats {
	e.statsMu.Lock()
	total := e.totalCycles
	sumMs := e.sumCycleMs
	started := e.startedAt
	e.statsMu.Unlock()

	stats := SystemStats{
		UptimeSeconds: time.Since(started).Seconds(),
		TotalChecks:   total,
	}
	if total > 0 {
		stats.AvgCycleTimeMs = sumMs / float64(total)
	}

	history := e.store.History(0)
	if len(history) > 0 {
		healthy := 0
		for _, s := range history {
			if s.OverallStatus == models.StatusHealthy {
				healthy++
			}
		}
		stats.HealthyPercentage = float64(healthy) / float64(len(history)) * 100
	}
	return stats
}
