// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hardware implements the follower I/O on real and simulated
// robots. Every backend satisfies controller.Hardware and io.Closer.
package hardware

import (
	"github.com/relabs-tech/buzzline/internal/line"
)

// rescale maps v from 0..max onto the 0..1023 sensor range.
func rescale(v, max int64) int {
	if max <= 0 || v <= 0 {
		return 0
	}
	r := v * line.MaxReading / max
	if r > line.MaxReading {
		return line.MaxReading
	}
	return int(r)
}

// split returns the direction and magnitude of a signed speed, the
// magnitude limited to 0..255.
func split(speed int) (forward bool, magnitude int) {
	forward = speed >= 0
	if !forward {
		speed = -speed
	}
	if speed > 255 {
		speed = 255
	}
	return forward, speed
}
