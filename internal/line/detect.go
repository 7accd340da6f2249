// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package line

// Detect reports whether the line is under a sensor. The reading must be
// past both the sensor's own midpoint and the global threshold, so values
// in the band where the two disagree count as background.
func Detect(reading int, ref SensorReference, threshold int, lineIsDark bool) bool {
	mid := ref.Mid()
	if lineIsDark {
		return reading < mid && reading < threshold
	}
	return reading > mid && reading > threshold
}

// DetectAll applies Detect to each sensor using cal.
func DetectAll(r Readings, cal Calibration) Detection {
	return Detection{
		Left:   Detect(r[Left], cal.References[Left], cal.Threshold, cal.LineIsDark),
		Center: Detect(r[Center], cal.References[Center], cal.Threshold, cal.LineIsDark),
		Right:  Detect(r[Right], cal.References[Right], cal.Threshold, cal.LineIsDark),
	}
}
