package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ylxai/hafiportrait-monitor/internal/aggregate"
	"github.com/ylxai/hafiportrait-monitor/internal/alert"
	"github.com/ylxai/hafiportrait-monitor/internal/auth"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
	"github.com/ylxai/hafiportrait-monitor/internal/monitor"
	"github.com/ylxai/hafiportrait-monitor/internal/store"
	"github.com/ylxai/hafiportrait-monitor/internal/ws"
)

type Server struct {
	engine     *monitor.Engine
	store      *store.MetricsStore
	manager    *alert.Manager
	aggregator *aggregate.Aggregator
	hub        *ws.Hub
	log        *logrus.Logger
	router     *gin.Engine
}

func NewServer(engine *monitor.Engine, st *store.MetricsStore, manager *alert.Manager,
	aggregator *aggregate.Aggregator, hub *ws.Hub, jwtSecret string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:     engine,
		store:      st,
		manager:    manager,
		aggregator: aggregator,
		hub:        hub,
		log:        log,
		router:     gin.New(),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes(jwtSecret)
	return s
}

func (s *Server) setupRoutes(jwtSecret string) {
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})

	api := s.router.Group("/api/v1")
	api.Use(auth.Middleware(jwtSecret))

	api.GET("/overview", s.getOverview)
	api.GET("/metrics", s.getMetrics)
	api.GET("/health", s.getHealth)
	api.GET("/alerts", s.listAlerts)
	api.GET("/stats", s.getStats)
	api.GET("/fleet", s.getFleet)
	api.POST("/monitoring", s.postMonitoring)
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// getOverview serves the dashboard's one-call summary of this instance:
// the latest snapshot plus headline alert counters.
func (s *Server) getOverview(c *gin.Context) {
	latest := s.latestSnapshot()
	alertMetrics := s.manager.Metrics()

	c.JSON(http.StatusOK, gin.H{
		"timestamp":    latest.Timestamp,
		"status":       latest.OverallStatus,
		"metrics":      latest.Metrics,
		"healthChecks": latest.HealthChecks,
		"alerts": gin.H{
			"total":    alertMetrics.TotalAlerts,
			"critical": alertMetrics.CriticalAlerts,
			"resolved": alertMetrics.ResolvedAlerts,
		},
		"systemStats": s.engine.Stats(),
		"lastUpdated": time.Now().UTC(),
	})
}

// getFleet serves the weighted multi-instance summary, folding the local
// instance's latest snapshot in before polling siblings.
func (s *Server) getFleet(c *gin.Context) {
	local := aggregate.InstanceReport{Status: models.StatusUnknown}
	if latest, ok := s.store.Latest(); ok {
		local.Status = latest.OverallStatus
		local.ErrorRate = latest.Metrics.API.ErrorRatePct
	}
	resolved := false
	local.Alerts = s.manager.List(alert.Filter{Resolved: &resolved})
	s.aggregator.SetLocal(local)

	c.JSON(http.StatusOK, s.aggregator.Overview(c.Request.Context()))
}

// getMetrics returns the current snapshot, the retained history and
// direction trends.
func (s *Server) getMetrics(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = l
	}

	history := s.store.History(limit)
	c.JSON(http.StatusOK, gin.H{
		"current": s.latestSnapshot(),
		"history": history,
		"trends":  computeTrends(history),
		"count":   len(history),
	})
}

// latestSnapshot is the freshest snapshot available: memory first, then the
// last persisted row, then an unknown-status default so dashboards always
// have something to render.
func (s *Server) latestSnapshot() models.PerformanceMetrics {
	if latest, ok := s.store.Latest(); ok {
		return latest
	}
	if latest, ok := s.store.ReadLatest(); ok {
		return latest
	}
	return models.PerformanceMetrics{
		Metrics:       models.DefaultSystemMetrics(),
		OverallStatus: models.StatusUnknown,
	}
}

// getHealth returns the latest snapshot with engine statistics.
func (s *Server) getHealth(c *gin.Context) {
	latest := s.latestSnapshot()

	c.JSON(http.StatusOK, gin.H{
		"status":       latest.OverallStatus,
		"timestamp":    latest.Timestamp,
		"metrics":      latest.Metrics,
		"healthChecks": latest.HealthChecks,
		"stats":        s.engine.Stats(),
	})
}

func (s *Server) listAlerts(c *gin.Context) {
	f := alert.Filter{
		Severity: models.Severity(c.Query("severity")),
		Category: models.Category(c.Query("category")),
	}
	if raw := c.Query("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "resolved must be true or false"})
			return
		}
		f.Resolved = &resolved
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		f.Limit = limit
	}

	alerts := s.manager.List(f)

	unresolved, critical := 0, 0
	var lastAlert *time.Time
	for i, a := range alerts {
		if !a.Resolved {
			unresolved++
		}
		if a.Severity == models.SeverityCritical {
			critical++
		}
		if i == 0 {
			ts := a.Timestamp
			lastAlert = &ts
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts":  alerts,
		"metrics": s.manager.Metrics(),
		"summary": gin.H{
			"total":      len(alerts),
			"unresolved": unresolved,
			"critical":   critical,
			"lastAlert":  lastAlert,
		},
	})
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"alerts":     s.manager.Metrics(),
		"system":     s.engine.Stats(),
		"dashboards": s.hub.ClientCount(),
	})
}

type monitoringAction struct {
	Action     string      `json:"action" binding:"required"`
	AlertID    string      `json:"alertId"`
	ResolvedBy string      `json:"resolvedBy"`
	Alert      *alert.Spec `json:"alert"`
}

// postMonitoring dispatches operator actions: an on-demand check cycle,
// alert resolution, or a test alert through the full notification path.
func (s *Server) postMonitoring(c *gin.Context) {
	var req monitoringAction
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Action {
	case "health-check":
		snapshot, err := s.engine.RunCycle(c.Request.Context())
		if errors.Is(err, monitor.ErrCycleInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"snapshot": snapshot})

	case "resolve-alert":
		if req.AlertID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "alertId is required"})
			return
		}
		resolvedBy := req.ResolvedBy
		if resolvedBy == "" {
			resolvedBy = "api"
		}
		// an unknown id is a boolean outcome, not an error
		c.JSON(http.StatusOK, gin.H{"success": s.manager.Resolve(req.AlertID, resolvedBy)})

	case "test-alert":
		spec := alert.Spec{
			Title:    "Test Alert",
			Message:  "This is a test alert from the monitoring API",
			Severity: models.SeverityInfo,
			Category: models.CategorySystem,
			Source:   "api-test",
			Tags:     []string{"test"},
		}
		if req.Alert != nil {
			spec = *req.Alert
		}
		a, created := s.manager.CreateAlert(spec)
		if !created {
			c.JSON(http.StatusConflict, gin.H{"error": "alert suppressed by cooldown"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alert": a})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown action %q", req.Action)})
	}
}

// Trend summarizes a metric's direction over the retained history.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// computeTrends compares the newer half of the history against the older
// half for the headline metrics. Changes under 5% read as stable.
func computeTrends(history []models.PerformanceMetrics) map[string]Trend {
	trends := map[string]Trend{
		"cpu":          TrendStable,
		"memory":       TrendStable,
		"responseTime": TrendStable,
		"errorRate":    TrendStable,
	}
	if len(history) < 2 {
		return trends
	}

	mid := len(history) / 2
	older, newer := history[:mid], history[mid:]

	trends["cpu"] = direction(
		mean(older, func(m models.PerformanceMetrics) float64 { return m.Metrics.CPU.Usage }),
		mean(newer, func(m models.PerformanceMetrics) float64 { return m.Metrics.CPU.Usage }),
	)
	trends["memory"] = direction(
		mean(older, func(m models.PerformanceMetrics) float64 { return m.Metrics.Memory.Percentage }),
		mean(newer, func(m models.PerformanceMetrics) float64 { return m.Metrics.Memory.Percentage }),
	)
	trends["responseTime"] = direction(
		mean(older, func(m models.PerformanceMetrics) float64 { return m.Metrics.API.ResponseTimeMs }),
		mean(newer, func(m models.PerformanceMetrics) float64 { return m.Metrics.API.ResponseTimeMs }),
	)
	trends["errorRate"] = direction(
		mean(older, func(m models.PerformanceMetrics) float64 { return m.Metrics.API.ErrorRatePct }),
		mean(newer, func(m models.PerformanceMetrics) float64 { return m.Metrics.API.ErrorRatePct }),
	)
	return trends
}

func mean(history []models.PerformanceMetrics, pick func(models.PerformanceMetrics) float64) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, m := range history {
		sum += pick(m)
	}
	return sum / float64(len(history))
}

func direction(older, newer float64) Trend {
	if older == 0 {
		if newer == 0 {
			return TrendStable
		}
		return TrendUp
	}
	change := (newer - older) / older
	switch {
	case change > 0.05:
		return TrendUp
	case change < -0.05:
		return TrendDown
	default:
		return TrendStable
	}
}
