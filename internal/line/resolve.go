// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package line

// Speeds are the two tuned power levels of the bang-bang controller.
// Reacquisition pivots run the outer wheel at Turn and the inner wheel
// backwards at half of Turn.
type Speeds struct {
	Base int
	Turn int
}

// Resolve maps one detection triple and the previous direction to a motor
// command and the next direction. First matching rule wins:
//
//	center               straight at Base, memory center
//	left only            veer left, memory left
//	right only           veer right, memory right
//	left and right       slow straight, memory center
//	nothing              search towards memory
func Resolve(det Detection, memory Direction, s Speeds) (MotorCommand, Direction) {
	switch {
	case det.Center:
		return MotorCommand{Left: s.Base, Right: s.Base}, DirectionCenter
	case det.Left && !det.Right:
		return MotorCommand{Left: s.Turn, Right: s.Base}, DirectionLeft
	case det.Right && !det.Left:
		return MotorCommand{Left: s.Base, Right: s.Turn}, DirectionRight
	case det.Left && det.Right:
		// wide line or intersection, no side bias
		return MotorCommand{Left: s.Turn, Right: s.Turn}, DirectionCenter
	}
	return search(memory, s), memory
}

func search(memory Direction, s Speeds) MotorCommand {
	switch memory {
	case DirectionLeft:
		return MotorCommand{Left: s.Turn, Right: -s.Turn / 2}
	case DirectionRight:
		return MotorCommand{Left: -s.Turn / 2, Right: s.Turn}
	default:
		return MotorCommand{Left: s.Turn, Right: s.Turn}
	}
}

// Resolver keeps the directional memory between cycles.
type Resolver struct {
	speeds Speeds
	memory Direction
}

// NewResolver returns a resolver whose memory starts at center.
func NewResolver(s Speeds) *Resolver {
	return &Resolver{speeds: s, memory: DirectionCenter}
}

// Next resolves one cycle and updates the memory.
func (r *Resolver) Next(det Detection) MotorCommand {
	cmd, next := Resolve(det, r.memory, r.speeds)
	r.memory = next
	return cmd
}

// Memory returns the last known line direction.
func (r *Resolver) Memory() Direction {
	return r.memory
}

// Reset puts the memory back to center.
func (r *Resolver) Reset() {
	r.memory = DirectionCenter
}
