// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package line

import (
	"fmt"
	"time"
)

// Probe is what the calibrator needs from the robot.
type Probe interface {
	// ReadSensors samples all three light sensors.
	ReadSensors() (Readings, error)
	// Pressed reports a new button press since the previous call.
	Pressed() (bool, error)
}

// CalibratorConfig holds the sampling and button timing.
type CalibratorConfig struct {
	Samples        int
	SampleInterval time.Duration
	PollInterval   time.Duration
	DebounceDelay  time.Duration
}

// DefaultCalibratorConfig holds the values tuned on the bench robot.
var DefaultCalibratorConfig = CalibratorConfig{
	Samples:        20,
	SampleInterval: 20 * time.Millisecond,
	PollInterval:   10 * time.Millisecond,
	DebounceDelay:  200 * time.Millisecond,
}

// Phase is the position of a calibration run.
type Phase int

const (
	PhaseAwaitBackground Phase = iota
	PhaseSampleBackground
	PhaseAwaitLine
	PhaseSampleLine
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitBackground:
		return "await_background"
	case PhaseSampleBackground:
		return "sample_background"
	case PhaseAwaitLine:
		return "await_line"
	case PhaseSampleLine:
		return "sample_line"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Calibrator runs the two-placement calibration one tick at a time. It
// never sleeps: each Step returns how long the caller should wait before
// the next Step. There is no timeout; an operator who never presses the
// button keeps it waiting forever.
type Calibrator struct {
	cfg    CalibratorConfig
	probe  Probe
	notify func(msg string)

	phase    Phase
	prompted bool
	sums     [NumSensors]int
	count    int
	white    Readings
	line     Readings
	result   Calibration
}

// NewCalibrator returns a calibrator waiting for the background placement.
// notify receives the operator prompts and the measured levels; it may be nil.
func NewCalibrator(cfg CalibratorConfig, probe Probe, notify func(msg string)) *Calibrator {
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultCalibratorConfig.Samples
	}
	if notify == nil {
		notify = func(string) {}
	}
	return &Calibrator{cfg: cfg, probe: probe, notify: notify}
}

// Phase returns the current phase.
func (c *Calibrator) Phase() Phase {
	return c.phase
}

// Done reports whether both placements have been sampled.
func (c *Calibrator) Done() bool {
	return c.phase == PhaseDone
}

// Result returns the derived calibration once Done.
func (c *Calibrator) Result() (Calibration, bool) {
	return c.result, c.phase == PhaseDone
}

// Step advances the calibration by one tick.
func (c *Calibrator) Step() time.Duration {
	switch c.phase {
	case PhaseAwaitBackground:
		return c.await("calibration: place the robot on the BACKGROUND and press the button", PhaseSampleBackground)
	case PhaseSampleBackground:
		return c.sample(func(avg Readings) {
			c.white = avg
			c.notify(fmt.Sprintf("background measured -> L:%d C:%d R:%d", avg[Left], avg[Center], avg[Right]))
			c.enter(PhaseAwaitLine)
		})
	case PhaseAwaitLine:
		return c.await("calibration: now place the robot on the LINE and press the button", PhaseSampleLine)
	case PhaseSampleLine:
		return c.sample(func(avg Readings) {
			c.line = avg
			c.notify(fmt.Sprintf("line measured -> L:%d C:%d R:%d", avg[Left], avg[Center], avg[Right]))
			c.result = Derive(c.white, c.line)
			c.notify(fmt.Sprintf("threshold set to %d", c.result.Threshold))
			c.notify(fmt.Sprintf("line is dark? %s", yesNo(c.result.LineIsDark)))
			c.enter(PhaseDone)
		})
	}
	return 0
}

func (c *Calibrator) await(prompt string, next Phase) time.Duration {
	if !c.prompted {
		c.notify(prompt)
		c.prompted = true
	}
	pressed, err := c.probe.Pressed()
	if err != nil || !pressed {
		return c.cfg.PollInterval
	}
	c.enter(next)
	return c.cfg.DebounceDelay
}

func (c *Calibrator) sample(finish func(avg Readings)) time.Duration {
	r, err := c.probe.ReadSensors()
	if err != nil {
		// dropped, retried next tick
		return c.cfg.SampleInterval
	}
	for i := range r {
		c.sums[i] += r[i]
	}
	c.count++
	if c.count == c.cfg.Samples {
		var avg Readings
		for i := range avg {
			avg[i] = c.sums[i] / c.cfg.Samples
		}
		finish(avg)
	}
	return c.cfg.SampleInterval
}

func (c *Calibrator) enter(p Phase) {
	c.phase = p
	c.prompted = false
	c.sums = [NumSensors]int{}
	c.count = 0
}

// Derive computes the calibration from the averaged background and line
// levels. Overlapping or identical levels are accepted and simply yield
// a threshold with little discrimination.
func Derive(white, line Readings) Calibration {
	var cal Calibration
	for i := range cal.References {
		cal.References[i] = SensorReference{WhiteLevel: white[i], LineLevel: line[i]}
	}
	avgWhite := (white[Left] + white[Center] + white[Right]) / NumSensors
	avgLine := (line[Left] + line[Center] + line[Right]) / NumSensors
	cal.Threshold = (avgWhite + avgLine) / 2
	cal.LineIsDark = avgLine < avgWhite
	return cal
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
