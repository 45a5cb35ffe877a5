package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "moorproc"

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of REST API requests by route and status code",
		},
		[]string{"route", "code"},
	)

	seriesSamplesServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "series",
			Name:      "samples_served_total",
			Help:      "Count of raw samples served over the series service",
		},
		[]string{"mooring"},
	)

	seriesStreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "series",
			Name:      "stream_clients",
			Help:      "Number of connected live sample stream clients",
		},
	)
)

func init() {
	// Register metrics with Prometheus
	prometheus.MustRegister(httpRequests)
	prometheus.MustRegister(seriesSamplesServed)
	prometheus.MustRegister(seriesStreamClients)
}

// statusRecorder captures the response code for request metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrumented counts requests by matched route template and response code
func instrumented(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		route := req.URL.Path
		if current := mux.CurrentRoute(req); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
