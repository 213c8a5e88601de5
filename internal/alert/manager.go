package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

const metricsWindow = 24 * time.Hour

// Dispatcher sends notifications for one escalation tier of an alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, a models.Alert, esc models.EscalationRule)
}

// Spec describes an alert to create; the manager fills in id, timestamps and
// lifecycle state.
type Spec struct {
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Severity models.Severity        `json:"severity"`
	Category models.Category        `json:"category"`
	Source   string                 `json:"source"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Tags     []string               `json:"tags,omitempty"`
}

// Filter narrows List results; all set fields must match.
type Filter struct {
	Severity models.Severity
	Category models.Category
	Resolved *bool
	Limit    int
}

// ManagerOptions wires the manager's collaborators and tuning knobs.
type ManagerOptions struct {
	MinCooldown time.Duration
	MaxRetained int
	Rules       []models.AlertRule
	Dispatcher  Dispatcher
	DB          *gorm.DB
	Log         *logrus.Logger
}

// Manager owns the alert lifecycle: creation with cooldown dedup, timed
// escalation through notification tiers, resolution and queries. The alert
// table, cooldown map and timer map are all guarded by one mutex; escalation
// timer callbacks re-fetch the alert by id before acting.
type Manager struct {
	mu        sync.Mutex
	alerts    map[string]*models.Alert
	order     []string
	cooldowns map[string]time.Time
	timers    map[string]*time.Timer

	rules       []models.AlertRule
	dispatcher  Dispatcher
	db          *gorm.DB
	log         *logrus.Logger
	minCooldown time.Duration
	maxRetained int

	// overridable in tests
	now       func() time.Time
	delayUnit time.Duration

	onEvent func(kind string, a models.Alert)
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.MinCooldown <= 0 {
		opts.MinCooldown = time.Minute
	}
	if opts.MaxRetained <= 0 {
		opts.MaxRetained = 1000
	}
	return &Manager{
		alerts:      make(map[string]*models.Alert),
		cooldowns:   make(map[string]time.Time),
		timers:      make(map[string]*time.Timer),
		rules:       opts.Rules,
		dispatcher:  opts.Dispatcher,
		db:          opts.DB,
		log:         opts.Log,
		minCooldown: opts.MinCooldown,
		maxRetained: opts.MaxRetained,
		now:         time.Now,
		delayUnit:   time.Minute,
	}
}

// SetEventSink registers a callback invoked (on its own goroutine) when an
// alert is created or resolved; used for live dashboard pushes.
func (m *Manager) SetEventSink(fn func(kind string, a models.Alert)) {
	m.mu.Lock()
	m.onEvent = fn
	m.mu.Unlock()
}

// HandleViolation turns a rule violation into an alert and starts tier-0
// escalation for the violated rule.
func (m *Manager) HandleViolation(v Violation) (models.Alert, bool) {
	rule := v.Rule
	spec := Spec{
		Title:    rule.Name,
		Message:  fmt.Sprintf("%s: current value %.2f exceeds threshold %.2f", rule.Name, v.Value, rule.Threshold),
		Severity: rule.Severity,
		Category: rule.Category,
		Source:   "health-monitor",
		Metadata: map[string]interface{}{
			"ruleId":        rule.ID,
			"observedValue": v.Value,
			"threshold":     rule.Threshold,
		},
		Tags: []string{"automated"},
	}
	return m.create(spec, &rule)
}

// CreateAlert creates an alert from an externally supplied spec (security
// monitors, manual test alerts). The first enabled rule with a matching
// category and compatible severity drives its escalation; without one the
// alert is stored but never escalates.
func (m *Manager) CreateAlert(spec Spec) (models.Alert, bool) {
	return m.create(spec, m.matchRule(spec))
}

func (m *Manager) matchRule(spec Spec) *models.AlertRule {
	for i := range m.rules {
		rule := &m.rules[i]
		if !rule.Enabled || rule.Category != spec.Category {
			continue
		}
		if spec.Severity == rule.Severity ||
			(rule.Severity == models.SeverityCritical &&
				(spec.Severity == models.SeverityCritical || spec.Severity == models.SeverityHigh)) {
			return rule
		}
	}
	return nil
}

func (m *Manager) create(spec Spec, rule *models.AlertRule) (models.Alert, bool) {
	now := m.now()
	cooldownKey := spec.Source + "-" + string(spec.Category)

	m.mu.Lock()
	defer m.mu.Unlock()

	window := m.minCooldown
	if rule != nil {
		if ruleWindow := time.Duration(rule.CooldownMinutes) * m.delayUnit; ruleWindow > window {
			window = ruleWindow
		}
	}
	if last, ok := m.cooldowns[cooldownKey]; ok && now.Sub(last) < window {
		m.log.WithFields(logrus.Fields{
			"source":   spec.Source,
			"category": spec.Category,
			"title":    spec.Title,
		}).Debug("alert suppressed due to cooldown")
		return models.Alert{}, false
	}

	a := &models.Alert{
		ID:              uuid.NewString(),
		Title:           spec.Title,
		Message:         spec.Message,
		Severity:        spec.Severity,
		Category:        spec.Category,
		Source:          spec.Source,
		Timestamp:       now,
		Metadata:        spec.Metadata,
		EscalationLevel: 0,
		Tags:            spec.Tags,
	}

	m.alerts[a.ID] = a
	m.order = append(m.order, a.ID)
	m.evictLocked()
	m.cooldowns[cooldownKey] = now

	m.persistCreate(*a)
	m.emit("created", *a)
	m.log.WithFields(logrus.Fields{
		"alert":    a.ID,
		"severity": a.Severity,
		"category": a.Category,
	}).Infof("alert created: %s", a.Title)

	if rule != nil {
		m.escalateLocked(a.ID, *rule, 0)
	}
	return *a, true
}

// evictLocked enforces the retention cap, oldest first. Resolution never
// destroys alerts; only eviction does.
func (m *Manager) evictLocked() {
	for len(m.order) > m.maxRetained {
		oldest := m.order[0]
		m.order = m.order[1:]
		m.stopTimersLocked(oldest)
		delete(m.alerts, oldest)
	}
}

// escalateLocked dispatches the given tier's notifications in the background
// and schedules the next tier's timer. At most one timer exists per
// (alert, level) pair. Callers hold m.mu.
func (m *Manager) escalateLocked(alertID string, rule models.AlertRule, level int) {
	a, ok := m.alerts[alertID]
	if !ok || a.Resolved || level >= len(rule.EscalationRules) {
		return
	}

	esc := rule.EscalationRules[level]
	if m.dispatcher != nil {
		snapshot := *a
		go m.dispatcher.Dispatch(context.Background(), snapshot, esc)
	}

	next := level + 1
	if next >= len(rule.EscalationRules) {
		return
	}
	key := timerKey(alertID, next)
	if _, exists := m.timers[key]; exists {
		return
	}
	delay := time.Duration(rule.EscalationRules[next].DelayMinutes) * m.delayUnit
	m.timers[key] = time.AfterFunc(delay, func() {
		m.fireEscalation(alertID, rule, next)
	})
}

// fireEscalation runs when an escalation timer expires. It re-fetches the
// alert and re-checks Resolved under the lock, closing the race with a
// resolution that lands while the timer is firing.
func (m *Manager) fireEscalation(alertID string, rule models.AlertRule, level int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.timers, timerKey(alertID, level))

	a, ok := m.alerts[alertID]
	if !ok || a.Resolved {
		return
	}
	a.EscalationLevel = level
	m.persistUpdate(*a)
	m.log.WithFields(logrus.Fields{"alert": alertID, "level": level}).Info("alert escalated")

	m.escalateLocked(alertID, rule, level)
}

// Resolve marks the alert resolved and cancels its pending escalation
// timers. Once this returns true no further escalation fires for the id.
// Unknown ids return false.
func (m *Manager) Resolve(alertID, resolvedBy string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertID]
	if !ok {
		return false
	}

	now := m.now()
	a.Resolved = true
	a.ResolvedAt = &now
	a.ResolvedBy = resolvedBy
	m.stopTimersLocked(alertID)

	m.persistUpdate(*a)
	m.emit("resolved", *a)
	m.log.WithField("alert", alertID).Infof("alert resolved by %s", resolvedBy)
	return true
}

// stopTimersLocked cancels every pending timer for the alert id; keys are
// id-prefixed so cancellation scans only this alert's tiers.
func (m *Manager) stopTimersLocked(alertID string) {
	prefix := alertID + "-"
	for key, timer := range m.timers {
		if strings.HasPrefix(key, prefix) {
			timer.Stop()
			delete(m.timers, key)
		}
	}
}

// List returns alerts newest-first with conjunctive filters applied.
func (m *Manager) List(f Filter) []models.Alert {
	m.mu.Lock()
	out := make([]models.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		if f.Resolved != nil && a.Resolved != *f.Resolved {
			continue
		}
		out = append(out, *a)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Get returns a copy of the alert with the given id.
func (m *Manager) Get(alertID string) (models.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[alertID]
	if !ok {
		return models.Alert{}, false
	}
	return *a, true
}

// Metrics aggregates alert counts over the trailing 24 hours plus all-time
// resolution statistics.
func (m *Manager) Metrics() models.AlertMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	metrics := models.AlertMetrics{
		AlertsByCategory: make(map[string]int),
		AlertsBySeverity: make(map[string]int),
	}

	var resolutionTotal time.Duration
	var resolutionCount int

	for _, a := range m.alerts {
		if a.Resolved {
			metrics.ResolvedAlerts++
			if a.ResolvedAt != nil {
				resolutionTotal += a.ResolvedAt.Sub(a.Timestamp)
				resolutionCount++
			}
		}
		if now.Sub(a.Timestamp) >= metricsWindow {
			continue
		}
		metrics.TotalAlerts++
		if a.Severity == models.SeverityCritical {
			metrics.CriticalAlerts++
		}
		metrics.AlertsByCategory[string(a.Category)]++
		metrics.AlertsBySeverity[string(a.Severity)]++
	}

	if resolutionCount > 0 {
		metrics.AverageResolutionTime = float64(resolutionTotal.Milliseconds()) / float64(resolutionCount)
	}
	return metrics
}

// Close stops all pending escalation timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, timer := range m.timers {
		timer.Stop()
		delete(m.timers, key)
	}
}

func (m *Manager) emit(kind string, a models.Alert) {
	if m.onEvent == nil {
		return
	}
	fn := m.onEvent
	go fn(kind, a)
}

func (m *Manager) persistCreate(a models.Alert) {
	if m.db == nil {
		return
	}
	payload, _ := json.Marshal(a)
	record := models.AlertRecord{
		AlertID:         a.ID,
		Title:           a.Title,
		Message:         a.Message,
		Severity:        string(a.Severity),
		Category:        string(a.Category),
		Source:          a.Source,
		Timestamp:       a.Timestamp,
		EscalationLevel: a.EscalationLevel,
		Payload:         string(payload),
	}
	if err := m.db.Create(&record).Error; err != nil {
		m.log.WithError(err).Warn("failed to persist alert")
	}
}

func (m *Manager) persistUpdate(a models.Alert) {
	if m.db == nil {
		return
	}
	updates := map[string]interface{}{
		"resolved":         a.Resolved,
		"resolved_at":      a.ResolvedAt,
		"resolved_by":      a.ResolvedBy,
		"escalation_level": a.EscalationLevel,
	}
	if err := m.db.Model(&models.AlertRecord{}).Where("alert_id = ?", a.ID).Updates(updates).Error; err != nil {
		m.log.WithError(err).Warn("failed to update persisted alert")
	}
}

func timerKey(alertID string, level int) string {
	return alertID + "-" + strconv.Itoa(level)
}
