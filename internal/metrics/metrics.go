// Package metrics holds the Prometheus collectors of the cache server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "logcache",
		Name:      "commands_total",
		Help:      "Protocol commands handled, by op and result",
	}, []string{"op", "result"})

	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "logcache",
		Name:      "sessions_active",
		Help:      "Number of connected sessions",
	})

	SessionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "logcache",
		Name:      "sessions_rejected_total",
		Help:      "Connections closed because the session limit was reached",
	})

	Services = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "logcache",
		Name:      "services",
		Help:      "Number of services in the registry",
	})

	RecordsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "logcache",
		Name:      "records_appended_total",
		Help:      "Log records appended across all services",
	})

	FlushRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "logcache",
		Name:      "flush_records_total",
		Help:      "Log records written to service files",
	})

	FlushErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "logcache",
		Name:      "flush_errors_total",
		Help:      "Flushes that failed with an i/o error",
	})

	StorePages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "logcache",
		Subsystem: "store",
		Name:      "pages_total",
		Help:      "Pages currently allocated by all log stores",
	})

	CatalogLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "logcache",
		Subsystem: "catalog",
		Name:      "op_duration_seconds",
		Help:      "Latency of catalog reads and writes",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"op"})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(Commands)
		prometheus.MustRegister(SessionsActive)
		prometheus.MustRegister(SessionsRejected)
		prometheus.MustRegister(Services)
		prometheus.MustRegister(RecordsAppended)
		prometheus.MustRegister(FlushRecords)
		prometheus.MustRegister(FlushErrors)
		prometheus.MustRegister(StorePages)
		prometheus.MustRegister(CatalogLatency)
	})
}
