// Package opsserver runs the health and metrics endpoints on a port
// separate from the authenticated API, so a load balancer's health
// check or a Prometheus scrape never needs a bearer token and never
// competes with the gin router's CORS/auth middleware stack.
package opsserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New builds the ops HTTP handler: /healthz and /metrics.
func New(registry *prometheus.Registry) http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return router
}
