package otcauth

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics block.
type MetricID uint8

const (
	// MetricCodeRequested counts successfully issued codes.
	MetricCodeRequested MetricID = iota
	// MetricCodeVerified counts successful verifications.
	MetricCodeVerified
	// MetricCodeRejected counts wrong-code submissions.
	MetricCodeRejected
	// MetricCodeExhausted counts records that hit the attempt budget.
	MetricCodeExhausted
	// MetricRateLimited counts requests refused by the rate limiter.
	MetricRateLimited
	// MetricDeliveryFailure counts delivery channel errors (best-effort path).
	MetricDeliveryFailure
	// MetricSessionCreated counts sessions minted by login/signup.
	MetricSessionCreated
	// MetricSessionEvicted counts sessions deactivated by cap enforcement.
	MetricSessionEvicted
	// MetricSessionRefreshed counts successful token rotations.
	MetricSessionRefreshed
	// MetricLogout counts logout and logout-all calls.
	MetricLogout

	metricIDCount
)

// Metrics is a fixed block of atomic counters. All methods are no-ops on
// a nil receiver so call sites stay unconditional.
type Metrics struct {
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics returns an empty counter block.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.counters[id].Add(n)
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	out := make(map[MetricID]uint64, metricIDCount)
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		out[id] = m.counters[id].Load()
	}
	return out
}
