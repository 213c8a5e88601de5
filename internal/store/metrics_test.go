package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

func snapshotAt(offset int) models.PerformanceMetrics {
	return models.PerformanceMetrics{
		Timestamp:     time.Date(2026, 1, 1, 0, 0, offset, 0, time.UTC),
		OverallStatus: models.StatusHealthy,
	}
}

func TestAppendBoundsHistory(t *testing.T) {
	s := NewMetricsStore(3, nil, nil)

	for i := 0; i < 10; i++ {
		s.Append(snapshotAt(i))
	}

	require.Equal(t, 3, s.Len())

	history := s.History(0)
	require.Len(t, history, 3)
	assert.Equal(t, snapshotAt(7).Timestamp, history[0].Timestamp)
	assert.Equal(t, snapshotAt(9).Timestamp, history[2].Timestamp)
}

func TestHistoryIsOldestToNewest(t *testing.T) {
	s := NewMetricsStore(10, nil, nil)
	for i := 0; i < 5; i++ {
		s.Append(snapshotAt(i))
	}

	history := s.History(0)
	require.Len(t, history, 5)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].Timestamp.After(history[i-1].Timestamp))
	}
}

func TestHistoryLimitReturnsNewest(t *testing.T) {
	s := NewMetricsStore(10, nil, nil)
	for i := 0; i < 5; i++ {
		s.Append(snapshotAt(i))
	}

	history := s.History(2)
	require.Len(t, history, 2)
	assert.Equal(t, snapshotAt(3).Timestamp, history[0].Timestamp)
	assert.Equal(t, snapshotAt(4).Timestamp, history[1].Timestamp)
}

func TestLatest(t *testing.T) {
	s := NewMetricsStore(3, nil, nil)

	_, ok := s.Latest()
	assert.False(t, ok)

	s.Append(snapshotAt(1))
	s.Append(snapshotAt(2))

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, snapshotAt(2).Timestamp, latest.Timestamp)
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewMetricsStore(3, nil, nil)
	s.Append(snapshotAt(1))

	history := s.History(0)
	history[0].OverallStatus = models.StatusCritical

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, models.StatusHealthy, latest.OverallStatus)
}
