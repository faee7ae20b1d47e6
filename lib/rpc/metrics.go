// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	decodeFailures prometheus.Counter
	inFlight       prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with
// registerer. Tests pass a fresh prometheus.NewRegistry() so repeated
// construction does not collide.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "slurmd",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Requests dispatched, by message type",
			},
			[]string{"type"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "slurmd",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Time spent in the handler, by message type",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		decodeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "slurmd",
				Subsystem: "rpc",
				Name:      "decode_failures_total",
				Help:      "Connections dropped because the request could not be decoded",
			},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "slurmd",
				Subsystem: "rpc",
				Name:      "workers_in_flight",
				Help:      "Connections currently being serviced",
			},
		),
	}
	registerer.MustRegister(metrics.requests, metrics.duration, metrics.decodeFailures, metrics.inFlight)
	return metrics
}

func (m *Metrics) observeRequest(messageType string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(messageType).Inc()
	m.duration.WithLabelValues(messageType).Observe(seconds)
}

func (m *Metrics) decodeFailed() {
	if m == nil {
		return
	}
	m.decodeFailures.Inc()
}

func (m *Metrics) workerStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) workerFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
