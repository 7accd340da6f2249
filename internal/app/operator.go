// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/buzzline/internal/controller"
	"github.com/relabs-tech/buzzline/internal/hardware"
)

// Op is one operator line typed on the console.
type Op int

const (
	OpNone Op = iota
	OpPress
	OpBackground
	OpLine
	OpStop
	OpQuit
)

// ParseOp maps a console line to a command. An empty line presses
// the button.
func ParseOp(s string) Op {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return OpPress
	case "b", "background":
		return OpBackground
	case "l", "line":
		return OpLine
	case "s", "stop":
		return OpStop
	case "q", "quit", "exit":
		return OpQuit
	}
	return OpNone
}

// ReadOps forwards parsed lines from r until EOF, then closes ops.
func ReadOps(r io.Reader, ops chan<- Op) {
	defer close(ops)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		op := ParseOp(scanner.Text())
		if op == OpNone {
			logrus.Warnf("operator: unknown command %q", scanner.Text())
			continue
		}
		ops <- op
	}
}

// apply runs a command between two controller steps. Button and placement
// commands only reach the simulated robot.
func (op Op) apply(c *controller.Controller, sim *hardware.Sim) {
	switch op {
	case OpStop:
		c.Stop("stop requested")
	case OpPress, OpBackground, OpLine:
		if sim == nil {
			logrus.Warn("operator: use the robot button")
			return
		}
		if op == OpBackground {
			sim.Place(false)
		} else if op == OpLine {
			sim.Place(true)
		}
		sim.Press()
	}
}
