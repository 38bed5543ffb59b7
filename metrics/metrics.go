// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "squeeze"

var (
	Registry = prometheus.NewRegistry()

	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compress_requests_total",
		Help:      "Compression requests by outcome.",
	}, []string{"outcome"})

	Enhancements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enhancements_total",
		Help:      "Successful compressions by enhancement.",
	}, []string{"enhancement"})

	Duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "compress_duration_seconds",
		Help:      "Time spent in the image pipeline.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	Bytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "image_bytes",
		Help:      "Size of uploads and results.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
	}, []string{"kind"})

	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Backend deliveries by backend and outcome.",
	}, []string{"backend", "outcome"})

	Downloads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Served result downloads.",
	})

	Expired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expired_records_total",
		Help:      "Records removed by the cleanup routine.",
	}, []string{"store"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Requests, Enhancements, Duration, Bytes, Deliveries, Downloads, Expired,
	)
}

// ObserveCompression records one finished pipeline run. originalSize < 0
// means the upload size was unknown.
func ObserveCompression(enhancement string, elapsed time.Duration, originalSize, compressedSize int64) {
	Requests.WithLabelValues("ok").Inc()
	Enhancements.WithLabelValues(enhancement).Inc()
	Duration.Observe(elapsed.Seconds())
	if originalSize >= 0 {
		Bytes.WithLabelValues("original").Observe(float64(originalSize))
	}
	Bytes.WithLabelValues("compressed").Observe(float64(compressedSize))
}

// ObserveFailure counts a request rejected at stage.
func ObserveFailure(stage string) {
	Requests.WithLabelValues(stage).Inc()
}

// ObserveDelivery counts a delivery attempt.
func ObserveDelivery(backend string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	Deliveries.WithLabelValues(backend, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
