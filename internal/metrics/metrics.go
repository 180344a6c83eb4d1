package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	linesRegisteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "sink",
			Name:      "lines_registered_total",
			Help:      "Total number of per-goroutine line buffers registered.",
		},
		[]string{"sink"},
	)
	flushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "sink",
			Name:      "flush_total",
			Help:      "Total number of non-empty flushes handed to the wrapped sink.",
		},
		[]string{"sink"},
	)
	flushFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "sink",
			Name:      "flush_failures_total",
			Help:      "Total number of flushes whose write to the wrapped sink failed.",
		},
		[]string{"sink"},
	)
	flushBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "linesink",
			Subsystem: "sink",
			Name:      "flush_bytes",
			Help:      "Number of bytes per flush.",
			Buckets:   []float64{8, 16, 32, 64, 128, 256, 512, 1024, 4096, 16384},
		},
		[]string{"sink"},
	)
	flushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "linesink",
			Subsystem: "sink",
			Name:      "flush_duration_seconds",
			Help:      "Time spent holding the sink lock per flush, in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
	closeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linesink",
			Subsystem: "sink",
			Name:      "close_total",
			Help:      "Total number of successful closes.",
		},
		[]string{"sink"},
	)
)

// Register registers all linesink metrics to the provided Prometheus registerer.
// It is safe to call multiple times; AlreadyRegisteredError will be ignored.
func Register(r prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		linesRegisteredTotal, flushTotal, flushFailuresTotal, flushBytes, flushDuration, closeTotal,
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

func label(sink string) string {
	if sink == "" {
		return "unknown"
	}
	return sink
}

// LineRegistered increments the registered lines counter for a sink.
func LineRegistered(sink string) {
	linesRegisteredTotal.WithLabelValues(label(sink)).Inc()
}

// FlushObserve records one flush: its size, how long the sink lock was held and
// whether the wrapped write succeeded.
func FlushObserve(sink string, size int, dur time.Duration, success bool) {
	sink = label(sink)
	flushDuration.WithLabelValues(sink).Observe(dur.Seconds())
	if !success {
		flushFailuresTotal.WithLabelValues(sink).Inc()
		return
	}
	if size > 0 {
		flushBytes.WithLabelValues(sink).Observe(float64(size))
		flushTotal.WithLabelValues(sink).Inc()
	}
}

// Closed increments the close counter for a sink.
func Closed(sink string) {
	closeTotal.WithLabelValues(label(sink)).Inc()
}
