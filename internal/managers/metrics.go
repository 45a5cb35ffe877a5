package managers

import "github.com/prometheus/client_golang/prometheus"

var captureSourcesActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "moorproc",
		Subsystem: "capture",
		Name:      "sources_active",
		Help:      "Number of running capture sources",
	},
)

func init() {
	// Register metrics with Prometheus
	prometheus.MustRegister(captureSourcesActive)
}
