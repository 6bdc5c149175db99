// Package metrics exposes scan activity as Prometheus gauges/counters so an
// operator running halberd unattended (e.g. the agent daemon) can scrape it
// instead of grepping logs.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "halberd_probes_total",
		Help: "Probe attempts, labeled by outcome.",
	}, []string{"result"})

	CluesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "halberd_clues_total",
		Help: "Raw clues inserted into a scan's clue table.",
	})

	BackendsDetected = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "halberd_backends_detected",
		Help:    "Number of distinct back-ends inferred per completed scan.",
		Buckets: []float64{1, 2, 3, 4, 5, 8, 16, 32},
	})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "halberd_scan_duration_seconds",
		Help:    "Wall-clock duration of a completed scan.",
		Buckets: prometheus.DefBuckets,
	})
)

// Serve starts the /metrics HTTP endpoint in a background goroutine. A blank
// addr disables it; Serve becomes a no-op.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("metrics: %v", err)
		}
	}()
}
