package authcore

import "sync/atomic"

// MetricID identifies a single counter tracked by Metrics.
type MetricID uint16

const (
	MetricTokenIssued MetricID = iota
	MetricTokenRejected
	MetricTokenExpired
	MetricTokenInvalidated
	MetricTokenBurned
	MetricScopeDenied
	MetricBannedRejected
	MetricMFARequired
	MetricMFASuccess
	MetricMFAFailure
	MetricRecoveryCodeUsed
	MetricRecoveryCodeReplay
	MetricMFAEnrollStarted
	MetricMFAEnabled
	MetricMFADisabled
	MetricAccountCreated
	MetricAccountDeleted
	MetricPasswordChanged
	MetricPasswordReuseRejected
	MetricEmailChanged
	MetricPermissionsUpdated
	MetricBanSet
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds per-operation counters. All methods are safe for
// concurrent use and become no-ops when metrics are disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get returns the current value of a single counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter into a fresh map.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
