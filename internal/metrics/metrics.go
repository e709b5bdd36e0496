// Package metrics exposes run counters on an optional /metrics listener.
// Long probe runs against big playlists take tens of minutes; the listener
// lets an operator watch progress without tailing logs.
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
		Name: "iptvcheckr_probes_total",
		Help: "Stream probes completed, by result.",
	}, []string{"result"})

	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvcheckr_lookups_total",
		Help: "Metadata cluster lookups, by outcome (cached, match, negative, error).",
	}, []string{"outcome"})

	ClustersBuilt = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "iptvcheckr_clusters_built",
		Help: "Clusters built from the current playlist.",
	})

	DownloadAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptvcheckr_download_attempts_total",
		Help: "Playlist download attempts across query variants and user agents.",
	})
)

// Serve starts the /metrics listener on addr in a background goroutine.
// No-op when addr is empty. Errors are logged, never fatal: metrics are an
// observability surface, not part of the pipeline.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: listener on %s failed: %v", addr, err)
		}
	}()
}
