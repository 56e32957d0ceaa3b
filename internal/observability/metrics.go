package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"edge", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"edge", "method", "path", "status"},
	)
	dispatchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldctl",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Dispatched processing requests by path and outcome.",
		},
		[]string{"edge", "type", "priority", "status"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldctl",
			Subsystem: "dispatch",
			Name:      "request_duration_seconds",
			Help:      "Processing duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"edge", "type", "priority", "status"},
	)
	dispatchLoad = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fieldctl",
			Subsystem: "dispatch",
			Name:      "load",
			Help:      "Weighted in-flight work at the admission gate.",
		},
		[]string{"edge"},
	)
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fieldctl",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Backlog messages per queue.",
		},
		[]string{"queue"},
	)
	actorTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldctl",
			Subsystem: "actor",
			Name:      "ticks_total",
			Help:      "Field evolution ticks per session.",
		},
		[]string{"session"},
	)
	actorPatterns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fieldctl",
			Subsystem: "actor",
			Name:      "patterns",
			Help:      "Live patterns per session after the last tick.",
		},
		[]string{"session"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			dispatchRequests, dispatchDuration, dispatchLoad,
			queueDepth, actorTicks, actorPatterns,
		)
	})
}

func RecordHTTPRequest(edge, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(edge, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(edge, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordDispatch(edge, reqType, priority, status string, duration time.Duration) {
	RegisterMetrics()
	dispatchRequests.WithLabelValues(edge, reqType, priority, status).Inc()
	dispatchDuration.WithLabelValues(edge, reqType, priority, status).Observe(duration.Seconds())
}

func SetDispatchLoad(edge string, load float64) {
	RegisterMetrics()
	dispatchLoad.WithLabelValues(edge).Set(load)
}

func SetQueueDepth(queue string, depth int) {
	RegisterMetrics()
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func RecordActorTick(session string, patterns int) {
	RegisterMetrics()
	actorTicks.WithLabelValues(session).Inc()
	actorPatterns.WithLabelValues(session).Set(float64(patterns))
}
