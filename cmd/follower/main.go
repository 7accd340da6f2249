// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"github.com/relabs-tech/buzzline/internal/app"
)

func main() {
	cmd := app.Command("follower", "Calibrate and run the three-sensor line follower", app.RunFollower)
	cmd.Long = `Runs the line follower on the configured backend.

The button starts calibration: place the robot on the background and press,
then on the line and press, then press once more to start the run. The run
stops on the end marker or an operator stop; the next press recalibrates and
starts again.

With BACKEND=sim the console stands in for the robot: ENTER presses the
button, "b" and "l" move the robot to the background or the line before
pressing, "s" stops the run and "q" quits.`
	app.Execute(cmd)
}
