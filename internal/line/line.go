// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package line holds the sensing and decision core of the follower:
// calibration, per-sensor line detection and the bang-bang direction
// resolver with its one-slot directional memory.
package line

import "fmt"

// Sensor positions, left to right across the chassis.
const (
	Left = iota
	Center
	Right

	NumSensors
)

// MaxReading is the top of the native 10-bit sensor range.
const MaxReading = 1023

// Readings is one raw sample per sensor, indexed by Left, Center, Right.
type Readings [NumSensors]int

// SensorReference is the calibrated baseline pair of a single sensor.
// No ordering is implied between the two levels; polarity is kept in
// Calibration.LineIsDark.
type SensorReference struct {
	WhiteLevel int `json:"white"`
	LineLevel  int `json:"line"`
}

// Mid is the per-sensor midpoint between background and line.
func (r SensorReference) Mid() int {
	return (r.WhiteLevel + r.LineLevel) / 2
}

// Calibration is the complete output of one calibration run. It is
// replaced as a whole, never patched.
type Calibration struct {
	References [NumSensors]SensorReference `json:"references"`
	Threshold  int                         `json:"threshold"`
	LineIsDark bool                        `json:"line_is_dark"`
}

// Detection is the per-cycle line presence under each sensor.
type Detection struct {
	Left   bool `json:"left"`
	Center bool `json:"center"`
	Right  bool `json:"right"`
}

func (d Detection) String() string {
	return fmt.Sprintf("[%d,%d,%d]", b2i(d.Left), b2i(d.Center), b2i(d.Right))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Direction is the last side the line was seen on.
type Direction int

const (
	DirectionLeft   Direction = -1
	DirectionCenter Direction = 0
	DirectionRight  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return "center"
	}
}

// MotorCommand is a signed speed pair; sign is direction, magnitude is
// PWM duty in 0..255.
type MotorCommand struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Halt is the all-stop command.
var Halt = MotorCommand{}

// Clamp limits both sides to [-255, 255].
func (c MotorCommand) Clamp() MotorCommand {
	return MotorCommand{Left: clampSpeed(c.Left), Right: clampSpeed(c.Right)}
}

func clampSpeed(v int) int {
	if v > 255 {
		return 255
	}
	if v < -255 {
		return -255
	}
	return v
}
