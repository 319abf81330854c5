/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"log"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	r *prometheus.Registry

	Spins        *prometheus.CounterVec
	EntriesAdded prometheus.Counter
	Sessions     prometheus.Gauge
}

func newMetrics() *Metrics {
	r := prometheus.NewRegistry()

	m := &Metrics{
		r: r,
		Spins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "namewheel_spins_total",
				Help: "Total number of resolved spins",
			},
			[]string{"mode", "constrained"},
		),
		EntriesAdded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "namewheel_entries_added_total",
				Help: "Total number of entries added to any wheel",
			},
		),
		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "namewheel_sessions",
				Help: "Number of live wheel sessions",
			},
		),
	}

	r.MustRegister(m.Spins, m.EntriesAdded, m.Sessions)

	return m
}

func (m *Metrics) spun(mode string, constrained bool) {
	m.Spins.WithLabelValues(mode, strconv.FormatBool(constrained)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.r, promhttp.HandlerOpts{
		ErrorLog:          log.Default(),
		Registry:          m.r,
		EnableOpenMetrics: true,
	})
}

func registerMetricsHandler(cfg *Config, m *Metrics, mux *httprouter.Router) {
	logf(cfg, "SERVE: Registering metrics handler at %s/metrics", cfg.prefix)

	mux.GET(cfg.prefix+"/metrics", serveMetrics(cfg, m))
}

func serveMetrics(cfg *Config, m *Metrics) httprouter.Handle {
	h := m.Handler()

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		h.ServeHTTP(w, r)
	}
}
