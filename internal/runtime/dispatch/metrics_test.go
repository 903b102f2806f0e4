package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordEventHandled(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())

	m.RecordEventHandled("orders", 160)
	m.RecordEventHandled("orders", 200)

	stats := m.GetHandlerStats("orders")
	require.NotNil(t, stats)
	assert.Equal(t, uint64(2), stats.EventsHandled)
	assert.Equal(t, int64(200), stats.Watermark)
	assert.False(t, stats.LastEventAt.IsZero())
}

func TestMetrics_RecordHandlerError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())

	m.RecordEventHandled("orders", 160)
	m.RecordHandlerError("orders")
	m.RecordHandlerError("invoices")

	snapshot := m.GetSnapshot()
	assert.Equal(t, uint64(1), snapshot.TotalEvents)
	assert.Equal(t, uint64(2), snapshot.TotalErrors)
	assert.Len(t, snapshot.HandlerStats, 2)
}

func TestMetrics_Checkpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())

	m.RecordCheckpointPublished("orders")
	m.RecordCheckpointPublished("orders")
	m.RecordCheckpointFailure("orders")

	stats := m.GetHandlerStats("orders")
	require.NotNil(t, stats)
	assert.Equal(t, uint64(2), stats.CheckpointsPublished)
	assert.Equal(t, uint64(1), stats.CheckpointFailures)
}

func TestMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Register())
	m.RecordEventHandled("orders", 160)
	m.RecordHandlerError("orders")
	m.RecordCheckpointPublished("orders")
	m.RecordCheckpointFailure("orders")
	assert.Nil(t, m.GetHandlerStats("orders"))
	assert.Empty(t, m.GetSnapshot().HandlerStats)
}

func TestMetrics_Reset(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())

	m.RecordEventHandled("orders", 160)
	m.Reset()

	assert.Nil(t, m.GetHandlerStats("orders"))
	assert.Equal(t, uint64(0), m.GetSnapshot().TotalEvents)
}
