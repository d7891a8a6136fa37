// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics exposes the gateway's Prometheus counters and histograms.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "quickly_predict"

// Collector holds all metrics on a private registry, so tests can build as
// many collectors as they like.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	Predictions      *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	Estimates        *prometheus.CounterVec
	SheetWrites      *prometheus.CounterVec
}

// New creates a collector and registers its metrics plus the Go runtime
// collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "predictions_total",
				Help:      "Prediction submissions by app and outcome",
			},
			[]string{"app", "outcome"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Latency of calls to prediction services",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"app", "status"},
		),
		Estimates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "estimates_total",
				Help:      "Nearest-neighbour estimates by outcome",
			},
			[]string{"outcome"},
		),
		SheetWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "sheet_writes_total",
				Help:      "Spreadsheet writes by operation",
			},
			[]string{"op"},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Predictions,
		c.UpstreamDuration,
		c.Estimates,
		c.SheetWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request. route is the mux pattern, not the
// raw path, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveUpstream records one call to a prediction service. status is 0 when
// no response arrived.
func (c *Collector) ObserveUpstream(app string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.UpstreamDuration.WithLabelValues(app, label).Observe(d.Seconds())
}

// Prediction counts one submission outcome.
func (c *Collector) Prediction(app, outcome string) {
	c.Predictions.WithLabelValues(app, outcome).Inc()
}

// Estimate counts one nearest-neighbour estimate.
func (c *Collector) Estimate(outcome string) {
	c.Estimates.WithLabelValues(outcome).Inc()
}

// SheetWrite counts one spreadsheet save.
func (c *Collector) SheetWrite(op string) {
	c.SheetWrites.WithLabelValues(op).Inc()
}
