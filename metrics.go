package goRWT

import (
	"sync/atomic"
	"time"
)

// MetricID indexes a counter or latency histogram in [Metrics].
type MetricID uint16

const (
	// MetricSignSuccess counts sessions written by Sign.
	MetricSignSuccess MetricID = iota
	// MetricSignFailure counts Sign calls rejected or failed by the store.
	MetricSignFailure
	// MetricVerifyHit counts Verify calls that found a live session.
	MetricVerifyHit
	// MetricVerifyMiss counts Verify calls that found nothing.
	MetricVerifyMiss
	// MetricVerifyFailure counts Verify calls that failed in the store.
	MetricVerifyFailure
	// MetricVerifyRateLimited counts Verify calls refused by the verify throttle.
	MetricVerifyRateLimited
	// MetricVerifyExtended counts TTL resets performed as part of Verify.
	MetricVerifyExtended
	// MetricVerifyExtendFailure counts TTL resets during Verify that failed and were swallowed.
	MetricVerifyExtendFailure
	// MetricExtendSuccess counts Extend calls that reset a live session's TTL.
	MetricExtendSuccess
	// MetricExtendMissing counts Extend calls whose session no longer existed.
	MetricExtendMissing
	// MetricExtendFailure counts Extend calls that failed in the store.
	MetricExtendFailure
	// MetricDestroySuccess counts Destroy calls that removed a session.
	MetricDestroySuccess
	// MetricDestroyMissing counts Destroy calls whose session no longer existed.
	MetricDestroyMissing
	// MetricDestroyFailure counts Destroy calls that failed in the store.
	MetricDestroyFailure
	// MetricInvalidArgument counts calls rejected before reaching Redis.
	MetricInvalidArgument
	// MetricConnect counts connections opened by Connect or lazy reconnection.
	MetricConnect
	// MetricDisconnect counts explicit disconnections.
	MetricDisconnect
	// MetricDialFailure counts failed attempts to dial Redis.
	MetricDialFailure
	// MetricStoreCommandFailure counts Redis commands and pipelines that returned an error.
	MetricStoreCommandFailure
	// MetricVerifyLatency is the end-to-end Verify latency histogram.
	MetricVerifyLatency
	// MetricStoreLatency is the per-command Redis latency histogram.
	MetricStoreLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

var histogramIDs = [...]MetricID{MetricVerifyLatency, MetricStoreLatency}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size, lock-free set of counters and latency histograms.
// A nil or disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histogram slices hold
// non-cumulative bucket counts for the bounds 5ms, 10ms, 25ms, 50ms, 100ms,
// 250ms, 500ms and +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] honoring cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in histogram id. Counter IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and every histogram when latency recording
// is enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, len(histogramIDs)),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range histogramIDs {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func isHistogram(id MetricID) bool {
	for _, h := range histogramIDs {
		if h == id {
			return true
		}
	}
	return false
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
