// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TheBaxes/slurm/lib/tasks"
)

// stepLister is implemented by executors that can enumerate running
// steps.
type stepLister interface {
	Steps() []tasks.StepID
}

// registerDaemonMetrics exposes daemon state as gauges read at scrape
// time.
func registerDaemonMetrics(registerer prometheus.Registerer, d *Daemon) {
	registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "slurmd",
			Name:      "revoked_credentials",
			Help:      "Credentials revoked since the agent started.",
		}, func() float64 {
			return float64(d.authority.Cache().Len())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "slurmd",
			Name:      "shutting_down",
			Help:      "1 once shutdown has begun.",
		}, func() float64 {
			if d.ShuttingDown() {
				return 1
			}
			return 0
		}),
	)
	if lister, ok := d.executor.(stepLister); ok {
		registerer.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "slurmd",
			Name:      "running_steps",
			Help:      "Job steps with live tasks on this node.",
		}, func() float64 {
			return float64(len(lister.Steps()))
		}))
	}
}

// listenMetrics binds the metrics endpoint address.
func listenMetrics(address string) (net.Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("binding metrics listener %s: %w", address, err)
	}
	return listener, nil
}

// serveMetrics serves /metrics and /health on listener until ctx is
// cancelled. The returned channel closes when the server has stopped.
func serveMetrics(ctx context.Context, listener net.Listener, gatherer prometheus.Gatherer, logger *slog.Logger) <-chan struct{} {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("metrics server listening", "address", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	return done
}
