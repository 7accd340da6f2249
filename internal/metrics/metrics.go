// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes follower counters to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Recorder is the set of events the controller counts.
type Recorder interface {
	Cycle(lineLost bool)
	Calibrated()
	MarkerStop()
	IOError(source string)
	State(name string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Cycle(bool) {}
func (Nop) Calibrated() {}
func (Nop) MarkerStop() {}
func (Nop) IOError(string) {}
func (Nop) State(string) {}

// Prometheus implements Recorder with prometheus collectors.
type Prometheus struct {
	registry    *prometheus.Registry
	cycles      prometheus.Counter
	lostCycles  prometheus.Counter
	calibration prometheus.Counter
	markerStops prometheus.Counter
	ioErrors    *prometheus.CounterVec
	state       *prometheus.GaugeVec
	states      []string
}

// NewPrometheus registers the collectors on a fresh registry. states lists
// every run state name so the gauge can zero the inactive ones.
func NewPrometheus(states []string) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buzzline",
			Name:      "control_cycles_total",
			Help:      "Control cycles executed while running.",
		}),
		lostCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buzzline",
			Name:      "line_lost_cycles_total",
			Help:      "Control cycles in which no sensor saw the line.",
		}),
		calibration: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buzzline",
			Name:      "calibrations_total",
			Help:      "Completed calibration runs.",
		}),
		markerStops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buzzline",
			Name:      "marker_stops_total",
			Help:      "Runs stopped by the marker sensor.",
		}),
		ioErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buzzline",
			Name:      "io_errors_total",
			Help:      "Hardware I/O errors by source.",
		}, []string{"source"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "buzzline",
			Name:      "run_state",
			Help:      "1 for the current run state, 0 otherwise.",
		}, []string{"state"}),
		states: states,
	}
	p.registry.MustRegister(p.cycles, p.lostCycles, p.calibration, p.markerStops, p.ioErrors, p.state)
	return p
}

func (p *Prometheus) Cycle(lineLost bool) {
	p.cycles.Inc()
	if lineLost {
		p.lostCycles.Inc()
	}
}

func (p *Prometheus) Calibrated() { p.calibration.Inc() }

func (p *Prometheus) MarkerStop() { p.markerStops.Inc() }

func (p *Prometheus) IOError(source string) {
	p.ioErrors.WithLabelValues(source).Inc()
}

func (p *Prometheus) State(name string) {
	for _, s := range p.states {
		v := 0.0
		if s == name {
			v = 1
		}
		p.state.WithLabelValues(s).Set(v)
	}
}

// Registry returns the registry holding the collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Serve exposes /metrics on addr in the background.
func (p *Prometheus) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logrus.Infof("metrics: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("metrics: server stopped: %v", err)
		}
	}()
	return srv
}
