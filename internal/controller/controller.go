// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package controller supervises the follower: it gates line following
// behind button-driven calibration and stops on the marker sensor.
//
// The controller is advanced by an outer driver. Each Step is one button
// poll or one control cycle and returns the delay the driver must wait
// before the next Step; the controller itself never sleeps.
package controller

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/buzzline/internal/line"
	"github.com/relabs-tech/buzzline/internal/metrics"
	"github.com/relabs-tech/buzzline/internal/telemetry"
)

// Hardware is the robot I/O the controller drives.
type Hardware interface {
	// ReadSensors samples the left, center and right light sensors (0..1023).
	ReadSensors() (line.Readings, error)
	// ReadMarker samples the optional marker sensor (0..1023). A
	// disconnected input simply reads as whatever it floats to.
	ReadMarker() (int, error)
	// ButtonDown reports whether the start button is held.
	ButtonDown() (bool, error)
	// SetMotors drives both wheels.
	SetMotors(cmd line.MotorCommand) error
	// SetStatus switches the status indicator.
	SetStatus(on bool) error
}

// Config holds the controller tuning.
type Config struct {
	Speeds            line.Speeds
	Calibration       line.CalibratorConfig
	CycleDelay        time.Duration
	RestartSettle     time.Duration
	TelemetryInterval time.Duration
	MarkerEnabled     bool
	MarkerThreshold   int
}

// DefaultConfig holds the bench robot tuning.
var DefaultConfig = Config{
	Speeds:            line.Speeds{Base: 200, Turn: 120},
	Calibration:       line.DefaultCalibratorConfig,
	CycleDelay:        10 * time.Millisecond,
	RestartSettle:     200 * time.Millisecond,
	TelemetryInterval: 300 * time.Millisecond,
	MarkerEnabled:     true,
	MarkerThreshold:   50,
}

// Controller owns the calibration, the direction memory and the run state.
// It is not safe for concurrent use.
type Controller struct {
	cfg   Config
	hw    Hardware
	sink  telemetry.Sink
	rec   metrics.Recorder
	runID string

	state      State
	now        time.Time
	buttonDown bool

	calibrator *line.Calibrator
	restarting bool
	cal        line.Calibration
	calibrated bool

	resolver  *line.Resolver
	lastFrame time.Time
}

// Option customises a Controller.
type Option func(*Controller)

// WithMetrics records counters on rec.
func WithMetrics(rec metrics.Recorder) Option {
	return func(c *Controller) { c.rec = rec }
}

// WithRunID stamps telemetry with id.
func WithRunID(id string) Option {
	return func(c *Controller) { c.runID = id }
}

// New returns a controller waiting for its first calibration.
func New(cfg Config, hw Hardware, sink telemetry.Sink, opts ...Option) *Controller {
	if sink == nil {
		sink = telemetry.Discard{}
	}
	c := &Controller{
		cfg:      cfg,
		hw:       hw,
		sink:     sink,
		rec:      metrics.Nop{},
		state:    AwaitingFirstCalibration,
		resolver: line.NewResolver(cfg.Speeds),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current run state.
func (c *Controller) State() State {
	return c.state
}

// Calibration returns the active calibration, if any.
func (c *Controller) Calibration() (line.Calibration, bool) {
	return c.cal, c.calibrated
}

// Memory returns the last known line direction.
func (c *Controller) Memory() line.Direction {
	return c.resolver.Memory()
}

// Start idles the motors, clears the indicator and prompts the operator.
func (c *Controller) Start(now time.Time) {
	c.now = now
	c.drive(line.Halt)
	c.status(false)
	c.rec.State(c.state.String())
	c.event(telemetry.KindInfo, "buzzline - light sensors (no PID)")
	c.event(telemetry.KindInfo, "press the button to start calibration")
}

// Step advances the controller at time now and returns how long to wait
// before calling it again.
func (c *Controller) Step(now time.Time) time.Duration {
	c.now = now
	switch c.state {
	case AwaitingFirstCalibration:
		if !c.pressed() {
			return c.cfg.Calibration.PollInterval
		}
		c.beginCalibration(false)
		return c.cfg.Calibration.DebounceDelay

	case Calibrating:
		wait := c.calibrator.Step()
		if !c.calibrator.Done() {
			return wait
		}
		c.finishCalibration()
		if c.restarting {
			c.enterRunning()
			return c.cfg.RestartSettle
		}
		c.setState(AwaitingStart)
		c.event(telemetry.KindInfo, "press the button again to start the run")
		return wait

	case AwaitingStart:
		if !c.pressed() {
			return c.cfg.Calibration.PollInterval
		}
		c.enterRunning()
		return c.cfg.Calibration.DebounceDelay

	case Running:
		c.cycle()
		return c.cfg.CycleDelay

	case Stopped:
		if !c.pressed() {
			return c.cfg.Calibration.PollInterval
		}
		c.event(telemetry.KindInfo, "restarting: calibrating again")
		c.beginCalibration(true)
		return c.cfg.RestartSettle
	}
	return c.cfg.Calibration.PollInterval
}

// Stop halts a running robot. It has no effect in any other state; a
// calibration in progress always runs to completion.
func (c *Controller) Stop(reason string) {
	if c.state != Running {
		return
	}
	c.drive(line.Halt)
	c.status(false)
	c.setState(Stopped)
	c.event(telemetry.KindStop, reason)
}

// Shutdown idles the motors and clears the indicator whatever the state.
func (c *Controller) Shutdown() {
	c.drive(line.Halt)
	c.status(false)
}

func (c *Controller) cycle() {
	readings, err := c.hw.ReadSensors()
	if err != nil {
		logrus.Warnf("controller: sensor read failed, halting this cycle: %v", err)
		c.rec.IOError("sensors")
		c.drive(line.Halt)
		return
	}

	det := line.DetectAll(readings, c.cal)
	cmd := c.resolver.Next(det)
	c.drive(cmd)
	c.rec.Cycle(det == line.Detection{})
	logrus.Debugf("controller: readings=%v det=%s cmd=%+v memory=%s", readings, det, cmd, c.resolver.Memory())

	if c.markerHit() {
		c.rec.MarkerStop()
		c.Stop("marker detected - stopping")
	}

	if c.lastFrame.IsZero() || c.now.Sub(c.lastFrame) >= c.cfg.TelemetryInterval {
		c.sink.Frame(telemetry.Frame{
			RunID:     c.runID,
			Time:      c.now,
			State:     c.state.String(),
			Readings:  readings,
			Detection: det,
			Command:   cmd,
			Memory:    c.resolver.Memory().String(),
		})
		c.lastFrame = c.now
	}
}

// markerHit reports a marker under the stop sensor. Read errors never stop
// the robot.
func (c *Controller) markerHit() bool {
	if !c.cfg.MarkerEnabled {
		return false
	}
	v, err := c.hw.ReadMarker()
	if err != nil {
		c.rec.IOError("marker")
		return false
	}
	return v < c.cfg.MarkerThreshold
}

func (c *Controller) beginCalibration(restarting bool) {
	c.restarting = restarting
	c.calibrator = line.NewCalibrator(c.cfg.Calibration, probe{c}, func(msg string) {
		c.event(telemetry.KindInfo, msg)
	})
	c.setState(Calibrating)
}

func (c *Controller) finishCalibration() {
	cal, _ := c.calibrator.Result()
	c.cal = cal
	c.calibrated = true
	c.calibrator = nil
	c.rec.Calibrated()
	c.sink.Event(telemetry.Event{
		RunID:       c.runID,
		Time:        c.now,
		Kind:        telemetry.KindCalibration,
		State:       c.state.String(),
		Message:     fmt.Sprintf("calibration complete: threshold=%d line_is_dark=%v", cal.Threshold, cal.LineIsDark),
		Calibration: &cal,
	})
}

func (c *Controller) enterRunning() {
	c.resolver.Reset()
	c.lastFrame = time.Time{}
	c.status(true)
	c.setState(Running)
	c.event(telemetry.KindInfo, "starting...")
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	logrus.Infof("controller: %s -> %s", c.state, s)
	c.state = s
	c.rec.State(s.String())
	c.event(telemetry.KindState, "state: "+s.String())
}

func (c *Controller) event(kind, msg string) {
	c.sink.Event(telemetry.Event{
		RunID:   c.runID,
		Time:    c.now,
		Kind:    kind,
		State:   c.state.String(),
		Message: msg,
	})
}

func (c *Controller) drive(cmd line.MotorCommand) {
	if err := c.hw.SetMotors(cmd.Clamp()); err != nil {
		logrus.Warnf("controller: motor write failed: %v", err)
		c.rec.IOError("motors")
	}
}

func (c *Controller) status(on bool) {
	if err := c.hw.SetStatus(on); err != nil {
		logrus.Warnf("controller: status indicator write failed: %v", err)
		c.rec.IOError("status")
	}
}

// pressed reports a released-to-pressed transition since the last poll.
func (c *Controller) pressed() bool {
	down, err := c.hw.ButtonDown()
	if err != nil {
		c.rec.IOError("button")
		return false
	}
	edge := down && !c.buttonDown
	c.buttonDown = down
	return edge
}

// probe lets the calibrator sample through the controller.
type probe struct {
	c *Controller
}

func (p probe) ReadSensors() (line.Readings, error) {
	r, err := p.c.hw.ReadSensors()
	if err != nil {
		logrus.Warnf("controller: calibration sample dropped: %v", err)
		p.c.rec.IOError("sensors")
	}
	return r, err
}

func (p probe) Pressed() (bool, error) {
	return p.c.pressed(), nil
}
