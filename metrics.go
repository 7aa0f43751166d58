package gpukv

import (
	"sync/atomic"
	"time"

	"github.com/segevido/gpukv/internal/interfaces"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a Store.
type Metrics struct {
	PutOps           atomic.Uint64
	GetOps           atomic.Uint64
	DeleteOps        atomic.Uint64
	AsyncInitiateOps atomic.Uint64
	AsyncFinalizeOps atomic.Uint64

	PutBytes atomic.Uint64
	GetBytes atomic.Uint64

	SuccessCount  atomic.Uint64
	NonExistCount atomic.Uint64
	FailCount     atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordPut records a PUT operation.
func (m *Metrics) RecordPut(bytes uint64, latencyNs uint64, success bool) {
	m.PutOps.Add(1)
	if success {
		m.PutBytes.Add(bytes)
		m.SuccessCount.Add(1)
	} else {
		m.FailCount.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordGet records a GET operation (synchronous, or one key of an async
// GET's background fetch).
func (m *Metrics) RecordGet(bytes uint64, latencyNs uint64, success bool) {
	m.GetOps.Add(1)
	if success {
		m.GetBytes.Add(bytes)
		m.SuccessCount.Add(1)
	} else {
		m.NonExistCount.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordDelete records a DELETE operation.
func (m *Metrics) RecordDelete(latencyNs uint64, success bool) {
	m.DeleteOps.Add(1)
	if success {
		m.SuccessCount.Add(1)
	} else {
		m.NonExistCount.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordAsyncInitiate records an ASYNC_GET_INITIATE call.
func (m *Metrics) RecordAsyncInitiate() {
	m.AsyncInitiateOps.Add(1)
}

// RecordAsyncFinalize records an ASYNC_GET_FINALIZE call.
func (m *Metrics) RecordAsyncFinalize() {
	m.AsyncFinalizeOps.Add(1)
}

// RecordQueueDepth records a queue-depth sample for a single block.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)

	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the store as stopped, freezing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	PutOps           uint64
	GetOps           uint64
	DeleteOps        uint64
	AsyncInitiateOps uint64
	AsyncFinalizeOps uint64

	PutBytes uint64
	GetBytes uint64

	SuccessCount  uint64
	NonExistCount uint64
	FailCount     uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps   uint64
	TotalBytes uint64
	ErrorRate  float64
}

// Snapshot returns a point-in-time snapshot of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		PutOps:           m.PutOps.Load(),
		GetOps:           m.GetOps.Load(),
		DeleteOps:        m.DeleteOps.Load(),
		AsyncInitiateOps: m.AsyncInitiateOps.Load(),
		AsyncFinalizeOps: m.AsyncFinalizeOps.Load(),
		PutBytes:         m.PutBytes.Load(),
		GetBytes:         m.GetBytes.Load(),
		SuccessCount:     m.SuccessCount.Load(),
		NonExistCount:    m.NonExistCount.Load(),
		FailCount:        m.FailCount.Load(),
		MaxQueueDepth:    m.MaxQueueDepth.Load(),
	}

	snap.TotalOps = snap.PutOps + snap.GetOps + snap.DeleteOps
	snap.TotalBytes = snap.PutBytes + snap.GetBytes

	if qc := m.QueueDepthCount.Load(); qc > 0 {
		snap.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(qc)
	}

	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}

	start := m.StartTime.Load()
	if stop := m.StopTime.Load(); stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(snap.FailCount) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) by linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// MetricsObserver adapts Metrics to interfaces.Observer, the interface
// the dispatcher's worker package depends on.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObservePut(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordPut(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveGet(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordGet(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveDelete(latencyNs uint64, success bool) {
	o.metrics.RecordDelete(latencyNs, success)
}

func (o *MetricsObserver) ObserveQueueDepth(blockIndex int, depth uint32) {
	o.metrics.RecordQueueDepth(depth)
}

var _ interfaces.Observer = (*MetricsObserver)(nil)
