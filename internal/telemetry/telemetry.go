// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry carries diagnostic output from the follower to logs,
// MQTT, a serial line and the status display. Every sink is fire and
// forget: nothing here reports back to the control loop.
package telemetry

import (
	"time"

	"github.com/relabs-tech/buzzline/internal/line"
)

// Frame is a periodic snapshot of one control cycle.
type Frame struct {
	RunID     string            `json:"run_id"`
	Time      time.Time         `json:"time"`
	State     string            `json:"state"`
	Readings  line.Readings     `json:"readings"`
	Detection line.Detection    `json:"detection"`
	Command   line.MotorCommand `json:"command"`
	Memory    string            `json:"memory"`
}

// Event kinds.
const (
	KindInfo        = "info"
	KindState       = "state"
	KindCalibration = "calibration"
	KindStop        = "stop"
)

// Event is a human-readable progress message. Calibration events also
// carry the derived values.
type Event struct {
	RunID       string            `json:"run_id"`
	Time        time.Time         `json:"time"`
	Kind        string            `json:"kind"`
	State       string            `json:"state,omitempty"`
	Message     string            `json:"message"`
	Calibration *line.Calibration `json:"calibration,omitempty"`
}

// Sink receives telemetry. Implementations must not block for long.
type Sink interface {
	Frame(f Frame)
	Event(e Event)
}

// Multi fans out to several sinks in order.
type Multi []Sink

func (m Multi) Frame(f Frame) {
	for _, s := range m {
		s.Frame(f)
	}
}

func (m Multi) Event(e Event) {
	for _, s := range m {
		s.Event(e)
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) Frame(Frame) {}
func (Discard) Event(Event) {}
