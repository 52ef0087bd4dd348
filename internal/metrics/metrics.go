// Package metrics provides lock-free counters for credential store
// observability.
//
// Counters are plain uint64 slots incremented atomically; the write path is
// allocation-free. Export (Prometheus, OTel) is out of scope here: callers
// read [Metrics.Snapshot] and ship it however they like.
package metrics

import "sync/atomic"

// MetricID identifies a single counter.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterRejected
	MetricLoginSuccess
	MetricLoginFailure
	MetricLogout
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricFlushSuccess
	MetricFlushFailure
	MetricTokensSwept

	// MetricIDCount is the number of defined counters.
	MetricIDCount
)

// Config controls metric collection. When Enabled is false every operation
// is a no-op.
type Config struct {
	Enabled bool
}

// Metrics holds one atomic counter per MetricID. A nil *Metrics is valid
// and counts nothing.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]atomic.Uint64
}

// New creates a Metrics instance.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter by one.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increments the counter by delta.
func (m *Metrics) Add(id MetricID, delta uint64) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(delta)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot returns a deep copy of the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	out := Snapshot{Counters: make(map[MetricID]uint64, MetricIDCount)}
	if m == nil {
		return out
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		out.Counters[id] = m.counters[id].Load()
	}
	return out
}
