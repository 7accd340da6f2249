// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package controller

import "fmt"

// State is the run state of the follower.
type State int

const (
	// AwaitingFirstCalibration is the power-up state.
	AwaitingFirstCalibration State = iota
	// Calibrating runs the two-placement calibration.
	Calibrating
	// AwaitingStart waits for the press that starts the first run.
	AwaitingStart
	// Running follows the line.
	Running
	// Stopped waits for a press to recalibrate and run again.
	Stopped
)

var stateNames = map[State]string{
	AwaitingFirstCalibration: "awaiting_first_calibration",
	Calibrating:              "calibrating",
	AwaitingStart:            "awaiting_start",
	Running:                  "running",
	Stopped:                  "stopped",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StateNames lists every state name, in order.
func StateNames() []string {
	return []string{
		AwaitingFirstCalibration.String(),
		Calibrating.String(),
		AwaitingStart.String(),
		Running.String(),
		Stopped.String(),
	}
}
