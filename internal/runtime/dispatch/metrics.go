package dispatch

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks per-handler dispatch statistics. A nil *Metrics is valid
// and records nothing, so callers that do not care about instrumentation can
// pass nil.
type Metrics struct {
	mu sync.RWMutex

	// Per-handler counts
	handlerStats map[string]*HandlerStats

	// Prometheus collectors
	eventsTotal        *prometheus.CounterVec
	handlerErrorsTotal *prometheus.CounterVec
	checkpointsTotal   *prometheus.CounterVec
	checkpointFailures *prometheus.CounterVec
	watermarkSeconds   *prometheus.GaugeVec

	registerer prometheus.Registerer
	registered bool
}

// HandlerStats holds dispatch statistics for a single handler.
type HandlerStats struct {
	EventsHandled        uint64    `json:"events_handled"`
	HandlerErrors        uint64    `json:"handler_errors"`
	CheckpointsPublished uint64    `json:"checkpoints_published"`
	CheckpointFailures   uint64    `json:"checkpoint_failures"`
	Watermark            int64     `json:"watermark"`
	LastEventAt          time.Time `json:"last_event_at,omitempty"`
}

// MetricsSnapshot provides a point-in-time view of dispatch metrics.
type MetricsSnapshot struct {
	TotalEvents  uint64                   `json:"total_events"`
	TotalErrors  uint64                   `json:"total_errors"`
	HandlerStats map[string]*HandlerStats `json:"handler_stats"`
	CollectedAt  time.Time                `json:"collected_at"`
}

// newDispatchCounterVec creates a counter vec under the feedflow/dispatch namespace.
func newDispatchCounterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedflow",
			Subsystem: "dispatch",
			Name:      name,
			Help:      help,
		},
		[]string{"handler"},
	)
}

// NewMetrics creates a dispatch metrics collector.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		handlerStats:       make(map[string]*HandlerStats),
		registerer:         registerer,
		eventsTotal:        newDispatchCounterVec("events_total", "Total number of feed events handled"),
		handlerErrorsTotal: newDispatchCounterVec("handler_errors_total", "Total number of handler invocation failures"),
		checkpointsTotal:   newDispatchCounterVec("checkpoints_published_total", "Total number of checkpoint events published"),
		checkpointFailures: newDispatchCounterVec("checkpoint_failures_total", "Total number of failed checkpoint publishes"),
		watermarkSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "feedflow",
				Subsystem: "dispatch",
				Name:      "watermark_seconds",
				Help:      "Last-processed event timestamp per handler",
			},
			[]string{"handler"},
		),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.eventsTotal,
		m.handlerErrorsTotal,
		m.checkpointsTotal,
		m.checkpointFailures,
		m.watermarkSeconds,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordEventHandled records a successful handler invocation.
func (m *Metrics) RecordEventHandled(handlerID string, watermark int64) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreateHandlerStats(handlerID)
	stats.EventsHandled++
	stats.Watermark = watermark
	stats.LastEventAt = time.Now()

	m.eventsTotal.WithLabelValues(handlerID).Inc()
	m.watermarkSeconds.WithLabelValues(handlerID).Set(float64(watermark))
}

// RecordHandlerError records a failed handler invocation.
func (m *Metrics) RecordHandlerError(handlerID string) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreateHandlerStats(handlerID)
	stats.HandlerErrors++

	m.handlerErrorsTotal.WithLabelValues(handlerID).Inc()
}

// RecordCheckpointPublished records a successful checkpoint publish.
func (m *Metrics) RecordCheckpointPublished(handlerID string) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreateHandlerStats(handlerID)
	stats.CheckpointsPublished++

	m.checkpointsTotal.WithLabelValues(handlerID).Inc()
}

// RecordCheckpointFailure records a failed checkpoint publish.
func (m *Metrics) RecordCheckpointFailure(handlerID string) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreateHandlerStats(handlerID)
	stats.CheckpointFailures++

	m.checkpointFailures.WithLabelValues(handlerID).Inc()
}

// GetSnapshot returns a point-in-time snapshot of all dispatch metrics.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		HandlerStats: make(map[string]*HandlerStats),
		CollectedAt:  time.Now(),
	}
	if m == nil {
		return snapshot
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for handlerID, stats := range m.handlerStats {
		statsCopy := *stats
		snapshot.HandlerStats[handlerID] = &statsCopy
		snapshot.TotalEvents += stats.EventsHandled
		snapshot.TotalErrors += stats.HandlerErrors
	}

	return snapshot
}

// GetHandlerStats returns statistics for a single handler, or nil if the
// handler has not recorded anything yet.
func (m *Metrics) GetHandlerStats(handlerID string) *HandlerStats {
	if m == nil {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if stats, ok := m.handlerStats[handlerID]; ok {
		statsCopy := *stats
		return &statsCopy
	}
	return nil
}

func (m *Metrics) getOrCreateHandlerStats(handlerID string) *HandlerStats {
	if stats, ok := m.handlerStats[handlerID]; ok {
		return stats
	}
	stats := &HandlerStats{}
	m.handlerStats[handlerID] = stats
	return stats
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlerStats = make(map[string]*HandlerStats)
	m.eventsTotal.Reset()
	m.handlerErrorsTotal.Reset()
	m.checkpointsTotal.Reset()
	m.checkpointFailures.Reset()
	m.watermarkSeconds.Reset()
}
