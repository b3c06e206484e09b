// Package exporters serves pipeline metrics over Prometheus HTTP and SSE.
package exporters

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/edgeviewer/internal/edges"
	"github.com/smazurov/edgeviewer/internal/version"
)

var buildInfoOnce sync.Once

// HTTPHandler returns the Prometheus handler for the default registry,
// which holds every promauto metric. The first call also registers
// edgeviewer_build_info.
func HTTPHandler() http.Handler {
	buildInfoOnce.Do(func() {
		info := version.Get(edges.Backend)
		prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "edgeviewer",
			Name:      "build_info",
			Help:      "Build metadata, always 1",
			ConstLabels: prometheus.Labels{
				"version":  info.Version,
				"commit":   info.GitCommit,
				"detector": info.Detector,
			},
		}, func() float64 { return 1 }))
	})
	return promhttp.Handler()
}
