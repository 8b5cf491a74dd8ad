package store

import (
	"sync/atomic"
	"time"
)

// Observer defines hooks for observability and metrics collection around
// store operations.
type Observer interface {
	// OnRead is called after a read action; count is the number of items
	// held afterwards. cached is true when the cache ledger suppressed it.
	OnRead(resource string, count int, cached bool, duration time.Duration)

	// OnCreate is called after a successful create action.
	OnCreate(resource string, duration time.Duration)

	// OnUpdate is called after a successful update action.
	OnUpdate(resource string, itemID string, duration time.Duration)

	// OnDestroy is called after a successful destroy action.
	OnDestroy(resource string, itemID string, duration time.Duration)

	// OnSync is called when a sync rule replaced a resource's items.
	OnSync(resource string, endpoint string, count int)

	// OnError is called when an operation fails.
	OnError(resource string, operation string, err error)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

func (NoopObserver) OnRead(string, int, bool, time.Duration) {}
func (NoopObserver) OnCreate(string, time.Duration)          {}
func (NoopObserver) OnUpdate(string, string, time.Duration)  {}
func (NoopObserver) OnDestroy(string, string, time.Duration) {}
func (NoopObserver) OnSync(string, string, int)              {}
func (NoopObserver) OnError(string, string, error)           {}

// MetricsObserver counts store operations. Counters are atomic so it can be
// shared across goroutines.
type MetricsObserver struct {
	readCount      atomic.Int64
	cachedCount    atomic.Int64
	createCount    atomic.Int64
	updateCount    atomic.Int64
	destroyCount   atomic.Int64
	syncCount      atomic.Int64
	errorCount     atomic.Int64
	totalLatencyNs atomic.Int64
}

// NewMetricsObserver creates a new metrics observer.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (m *MetricsObserver) OnRead(_ string, _ int, cached bool, duration time.Duration) {
	m.readCount.Add(1)
	if cached {
		m.cachedCount.Add(1)
	}
	m.totalLatencyNs.Add(int64(duration))
}

func (m *MetricsObserver) OnCreate(_ string, duration time.Duration) {
	m.createCount.Add(1)
	m.totalLatencyNs.Add(int64(duration))
}

func (m *MetricsObserver) OnUpdate(_ string, _ string, duration time.Duration) {
	m.updateCount.Add(1)
	m.totalLatencyNs.Add(int64(duration))
}

func (m *MetricsObserver) OnDestroy(_ string, _ string, duration time.Duration) {
	m.destroyCount.Add(1)
	m.totalLatencyNs.Add(int64(duration))
}

func (m *MetricsObserver) OnSync(string, string, int) {
	m.syncCount.Add(1)
}

func (m *MetricsObserver) OnError(string, string, error) {
	m.errorCount.Add(1)
}

// Snapshot returns a copy of the current counters.
func (m *MetricsObserver) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ReadCount:    m.readCount.Load(),
		CachedCount:  m.cachedCount.Load(),
		CreateCount:  m.createCount.Load(),
		UpdateCount:  m.updateCount.Load(),
		DestroyCount: m.destroyCount.Load(),
		SyncCount:    m.syncCount.Load(),
		ErrorCount:   m.errorCount.Load(),
		TotalLatency: time.Duration(m.totalLatencyNs.Load()),
	}
}

// Reset clears all counters.
func (m *MetricsObserver) Reset() {
	m.readCount.Store(0)
	m.cachedCount.Store(0)
	m.createCount.Store(0)
	m.updateCount.Store(0)
	m.destroyCount.Store(0)
	m.syncCount.Store(0)
	m.errorCount.Store(0)
	m.totalLatencyNs.Store(0)
}

// MetricsSnapshot is a point-in-time copy of MetricsObserver counters.
type MetricsSnapshot struct {
	ReadCount    int64         `json:"readCount"`
	CachedCount  int64         `json:"cachedCount"`
	CreateCount  int64         `json:"createCount"`
	UpdateCount  int64         `json:"updateCount"`
	DestroyCount int64         `json:"destroyCount"`
	SyncCount    int64         `json:"syncCount"`
	ErrorCount   int64         `json:"errorCount"`
	TotalLatency time.Duration `json:"totalLatencyNs"`
}

// TotalOperations returns the number of successful actions.
func (s MetricsSnapshot) TotalOperations() int64 {
	return s.ReadCount + s.CreateCount + s.UpdateCount + s.DestroyCount
}
