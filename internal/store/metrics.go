package store

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

const defaultCapacity = 100

// MetricsStore keeps a bounded, time-ordered history of snapshots in memory
// and mirrors the latest one to the database on a best-effort basis. The
// in-memory buffer is authoritative for the running process.
type MetricsStore struct {
	mu       sync.RWMutex
	buffer   []models.PerformanceMetrics
	capacity int
	db       *gorm.DB
	log      *logrus.Logger
}

// NewMetricsStore creates a store capped at capacity entries. db may be nil
// for a purely in-memory store.
func NewMetricsStore(capacity int, db *gorm.DB, log *logrus.Logger) *MetricsStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MetricsStore{
		buffer:   make([]models.PerformanceMetrics, 0, capacity),
		capacity: capacity,
		db:       db,
		log:      log,
	}
}

// Append adds a snapshot, evicting the oldest entry once capacity is
// exceeded. Eviction never reorders the remaining entries.
func (s *MetricsStore) Append(snapshot models.PerformanceMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) >= s.capacity {
		s.buffer = s.buffer[1:]
	}
	s.buffer = append(s.buffer, snapshot)
}

// Latest returns the most recent snapshot, if any.
func (s *MetricsStore) Latest() (models.PerformanceMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.buffer) == 0 {
		return models.PerformanceMetrics{}, false
	}
	return s.buffer[len(s.buffer)-1], true
}

// History returns up to limit snapshots ordered oldest to newest. A limit of
// zero or less returns everything.
func (s *MetricsStore) History(limit int) []models.PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.buffer)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.PerformanceMetrics, limit)
	copy(out, s.buffer[n-limit:])
	return out
}

// Len reports how many snapshots are currently retained.
func (s *MetricsStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffer)
}

// Persist writes the latest snapshot as an audit row. Failures are logged
// and never propagated; durability is best-effort.
func (s *MetricsStore) Persist() {
	latest, ok := s.Latest()
	if !ok || s.db == nil {
		return
	}

	payload, err := json.Marshal(latest)
	if err != nil {
		s.log.WithError(err).Warn("failed to encode snapshot for persistence")
		return
	}

	record := models.SnapshotRecord{
		Timestamp:     latest.Timestamp,
		OverallStatus: string(latest.OverallStatus),
		Payload:       string(payload),
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.log.WithError(err).Warn("failed to persist snapshot")
	}
}

// ReadLatest loads the most recently persisted snapshot from the database.
func (s *MetricsStore) ReadLatest() (models.PerformanceMetrics, bool) {
	if s.db == nil {
		return models.PerformanceMetrics{}, false
	}

	var record models.SnapshotRecord
	if err := s.db.Order("id desc").First(&record).Error; err != nil {
		return models.PerformanceMetrics{}, false
	}

	var snapshot models.PerformanceMetrics
	if err := json.Unmarshal([]byte(record.Payload), &snapshot); err != nil {
		s.log.WithError(err).Warn("failed to decode persisted snapshot")
		return models.PerformanceMetrics{}, false
	}
	return snapshot, true
}
