// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hardware

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/relabs-tech/buzzline/internal/line"
)

const (
	simBackground = 900
	simLine       = 100
	// line half width, in sensor spacings
	simLineWidth = 0.7
	// lateral speed of a full differential, sensor spacings per second
	simTurnRate = 3.0
	simOffTrack = 10.0
	simMaxDrift = 5.0
)

// SimConfig shapes the simulated track.
type SimConfig struct {
	// Curvature is the peak lateral drift, in sensor spacings per second,
	// the track bends under a robot at full speed.
	Curvature float64
	// Noise is the peak uniform noise added to each reading.
	Noise int
	Seed  int64
	// MarkerAfter places an end marker after this much driving at full
	// speed. Zero disables it.
	MarkerAfter time.Duration
}

// Sim is a robot on a virtual sheet: a dark line on a light background
// that bends as the robot drives along it.
type Sim struct {
	cfg   SimConfig
	clock func() time.Time

	mu       sync.Mutex
	rng      *rand.Rand
	offset   float64 // line position relative to the center sensor
	distance float64
	cmd      line.MotorCommand
	last     time.Time
	pending  int
	down     bool
	status   bool
}

// NewSim returns a robot standing on the background. A nil clock means
// time.Now.
func NewSim(cfg SimConfig, clock func() time.Time) *Sim {
	if clock == nil {
		clock = time.Now
	}
	return &Sim{
		cfg:    cfg,
		clock:  clock,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		offset: simOffTrack,
		last:   clock(),
	}
}

// Press queues one press of the button.
func (s *Sim) Press() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

// Place puts the robot on the line or on the background.
func (s *Sim) Place(onLine bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.distance = 0
	if onLine {
		s.offset = 0
	} else {
		s.offset = simOffTrack
	}
}

// Status reports the indicator state.
func (s *Sim) Status() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// advance integrates the robot motion since the last call.
func (s *Sim) advance() {
	now := s.clock()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	if dt <= 0 || s.offset >= simOffTrack {
		return
	}
	speed := float64(s.cmd.Left+s.cmd.Right) / 510
	turn := float64(s.cmd.Right-s.cmd.Left) / 255
	s.distance += math.Abs(speed) * dt
	s.offset += (turn*simTurnRate + s.cfg.Curvature*math.Sin(s.distance)*speed) * dt
	s.offset = math.Max(-simMaxDrift, math.Min(simMaxDrift, s.offset))
}

func (s *Sim) reading(position float64) int {
	d := (s.offset - position) / simLineWidth
	v := simBackground - int(float64(simBackground-simLine)*math.Exp(-d*d))
	if s.cfg.Noise > 0 {
		v += s.rng.Intn(2*s.cfg.Noise+1) - s.cfg.Noise
	}
	if v < 0 {
		return 0
	}
	if v > line.MaxReading {
		return line.MaxReading
	}
	return v
}

func (s *Sim) ReadSensors() (line.Readings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return line.Readings{s.reading(-1), s.reading(0), s.reading(1)}, nil
}

func (s *Sim) ReadMarker() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	if s.cfg.MarkerAfter > 0 && s.offset < simOffTrack && s.distance >= s.cfg.MarkerAfter.Seconds() {
		return simLine, nil
	}
	return simBackground, nil
}

// ButtonDown reports each queued press as one closed poll followed by
// one open poll.
func (s *Sim) ButtonDown() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		s.down = false
		return false, nil
	}
	if s.pending > 0 {
		s.pending--
		s.down = true
		return true, nil
	}
	return false, nil
}

func (s *Sim) SetMotors(cmd line.MotorCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.cmd = cmd.Clamp()
	return nil
}

func (s *Sim) SetStatus(on bool) error {
	s.mu.Lock()
	s.status = on
	s.mu.Unlock()
	return nil
}

func (s *Sim) Close() error { return nil }
