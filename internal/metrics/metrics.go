package metrics

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons recorded by RecordDropped.
const (
	DropStale     = "stale"
	DropBacklog   = "backlog"
	DropThrottled = "throttled"
	DropEmpty     = "empty"
	DropSkipped   = "skip_upload"
	DropBinding   = "binding"
)

// Stats holds internal counters exposed on the status endpoint
type Stats struct {
	RecordsReceived uint64
	RecordsPosted   uint64
	RecordsFailed   uint64
	RecordsDropped  uint64
	PostAttempts    uint64
	BytesPosted     uint64
	QueueDepth      int64
	LastPostUnix    int64
	AverageLatency  uint64 // microseconds
}

// Metrics manages performance metrics collection
type Metrics struct {
	stats     Stats
	startTime time.Time

	recordsReceived *prometheus.CounterVec
	recordsPosted   prometheus.Counter
	recordsFailed   *prometheus.CounterVec
	recordsDropped  *prometheus.CounterVec
	postAttempts    *prometheus.CounterVec
	bytesPosted     prometheus.Counter
	postDuration    prometheus.Histogram

	queueDepth   prometheus.Gauge
	breakerState *prometheus.GaugeVec
	breakerTrips prometheus.Counter

	goroutineCount prometheus.Gauge
	memoryUsage    prometheus.Gauge

	buildInfo *prometheus.GaugeVec
}

// NewMetrics creates a new metrics collector
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		startTime: time.Now(),

		recordsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "influxrelay_records_received_total",
			Help: "Total number of records accepted into the upload queue",
		}, []string{"origin"}),

		recordsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influxrelay_records_posted_total",
			Help: "Total number of records delivered to the server",
		}),

		recordsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "influxrelay_records_failed_total",
			Help: "Total number of records abandoned after a delivery failure",
		}, []string{"kind"}),

		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "influxrelay_records_dropped_total",
			Help: "Total number of records discarded by policy without a delivery attempt",
		}, []string{"reason"}),

		postAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "influxrelay_post_attempts_total",
			Help: "Total number of POST attempts by outcome",
		}, []string{"result"}),

		bytesPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influxrelay_bytes_posted_total",
			Help: "Total payload bytes delivered",
		}),

		postDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "influxrelay_post_duration_seconds",
			Help:    "Time to deliver one record, retries included",
			Buckets: prometheus.DefBuckets,
		}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "influxrelay_queue_depth",
			Help: "Records waiting in the upload queue",
		}),

		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "influxrelay_breaker_state",
			Help: "Circuit breaker state (1 for the current state)",
		}, []string{"state"}),

		breakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "influxrelay_breaker_trips_total",
			Help: "Total number of times the circuit breaker opened",
		}),

		goroutineCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "influxrelay_goroutines",
			Help: "Current number of goroutines",
		}),

		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "influxrelay_memory_bytes",
			Help: "Current memory usage in bytes",
		}),

		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "influxrelay_build_info",
				Help: "Build information",
			},
			[]string{"version", "commit", "build_time"},
		),
	}

	metrics := []prometheus.Collector{
		m.recordsReceived,
		m.recordsPosted,
		m.recordsFailed,
		m.recordsDropped,
		m.postAttempts,
		m.bytesPosted,
		m.postDuration,
		m.queueDepth,
		m.breakerState,
		m.breakerTrips,
		m.goroutineCount,
		m.memoryUsage,
		m.buildInfo,
	}

	for _, metric := range metrics {
		if err := reg.Register(metric); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordReceived counts a record accepted into the queue
func (m *Metrics) RecordReceived(origin string) {
	atomic.AddUint64(&m.stats.RecordsReceived, 1)
	m.recordsReceived.WithLabelValues(origin).Inc()
}

// RecordDropped counts records discarded by policy
func (m *Metrics) RecordDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&m.stats.RecordsDropped, uint64(n))
	m.recordsDropped.WithLabelValues(reason).Add(float64(n))
}

// RecordAttempt counts one POST attempt with its outcome
func (m *Metrics) RecordAttempt(result string) {
	atomic.AddUint64(&m.stats.PostAttempts, 1)
	m.postAttempts.WithLabelValues(result).Inc()
}

// RecordPosted records a successful delivery
func (m *Metrics) RecordPosted(bytes int, duration time.Duration) {
	atomic.AddUint64(&m.stats.RecordsPosted, 1)
	atomic.AddUint64(&m.stats.BytesPosted, uint64(bytes))
	atomic.StoreInt64(&m.stats.LastPostUnix, time.Now().Unix())

	current := atomic.LoadUint64(&m.stats.AverageLatency)
	latency := uint64(duration.Microseconds())
	if current == 0 {
		atomic.StoreUint64(&m.stats.AverageLatency, latency)
	} else {
		atomic.StoreUint64(&m.stats.AverageLatency, (current+latency)/2)
	}

	m.recordsPosted.Inc()
	m.bytesPosted.Add(float64(bytes))
	m.postDuration.Observe(duration.Seconds())
}

// RecordFailed counts a record abandoned after delivery failed
func (m *Metrics) RecordFailed(kind string) {
	atomic.AddUint64(&m.stats.RecordsFailed, 1)
	m.recordsFailed.WithLabelValues(kind).Inc()
}

// SetQueueDepth updates the queue depth gauge
func (m *Metrics) SetQueueDepth(n int) {
	atomic.StoreInt64(&m.stats.QueueDepth, int64(n))
	m.queueDepth.Set(float64(n))
}

// RecordBreakerState marks the current circuit breaker state
func (m *Metrics) RecordBreakerState(state string) {
	m.breakerState.Reset()
	m.breakerState.WithLabelValues(state).Set(1)
}

// RecordBreakerTripped counts a transition to the open state
func (m *Metrics) RecordBreakerTripped() {
	m.breakerTrips.Inc()
}

// UpdateSystemMetrics updates system-level metrics
func (m *Metrics) UpdateSystemMetrics() {
	m.goroutineCount.Set(float64(runtime.NumGoroutine()))

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryUsage.Set(float64(mem.Alloc))
}

// SetBuildInfo sets the build information metric
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// GetStats returns the current counters
func (m *Metrics) GetStats() map[string]interface{} {
	uptime := time.Since(m.startTime)
	posted := atomic.LoadUint64(&m.stats.RecordsPosted)

	var lastPost interface{}
	if ts := atomic.LoadInt64(&m.stats.LastPostUnix); ts > 0 {
		lastPost = time.Unix(ts, 0).UTC()
	}

	return map[string]interface{}{
		"uptime_seconds":     uptime.Seconds(),
		"records_received":   atomic.LoadUint64(&m.stats.RecordsReceived),
		"records_posted":     posted,
		"records_failed":     atomic.LoadUint64(&m.stats.RecordsFailed),
		"records_dropped":    atomic.LoadUint64(&m.stats.RecordsDropped),
		"post_attempts":      atomic.LoadUint64(&m.stats.PostAttempts),
		"bytes_posted":       atomic.LoadUint64(&m.stats.BytesPosted),
		"queue_depth":        atomic.LoadInt64(&m.stats.QueueDepth),
		"average_latency_us": atomic.LoadUint64(&m.stats.AverageLatency),
		"posts_per_minute":   float64(posted) / uptime.Minutes(),
		"last_post":          lastPost,
	}
}
