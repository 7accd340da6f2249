// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display shows the follower status on an SSD1306 OLED.
package display

import (
	"fmt"
	"image"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/buzzline/internal/line"
	"github.com/relabs-tech/buzzline/internal/telemetry"
)

// Screen is the part of ssd1306.Dev the sink draws on.
type Screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Status is what the screen shows.
type Status struct {
	State       string
	Message     string
	Calibration *line.Calibration
	Frame       *telemetry.Frame
}

// Sink redraws the screen on every frame and event.
type Sink struct {
	screen Screen

	mu     sync.Mutex
	status Status
}

func NewSink(screen Screen) *Sink {
	return &Sink{screen: screen}
}

func (s *Sink) Frame(f telemetry.Frame) {
	s.update(func(st *Status) {
		st.State = f.State
		st.Frame = &f
	})
}

func (s *Sink) Event(e telemetry.Event) {
	s.update(func(st *Status) {
		if e.State != "" {
			st.State = e.State
		}
		if e.Kind != telemetry.KindState {
			st.Message = e.Message
		}
		if e.Calibration != nil {
			cal := *e.Calibration
			st.Calibration = &cal
		}
		if e.Kind == telemetry.KindStop {
			st.Frame = nil
		}
	})
}

func (s *Sink) update(apply func(*Status)) {
	s.mu.Lock()
	apply(&s.status)
	img := Render(s.status)
	s.mu.Unlock()

	if err := s.screen.Draw(s.screen.Bounds(), img, image.Point{}); err != nil {
		logrus.Warnf("display: draw failed: %v", err)
	}
}

// Render draws the status on a 128x64 frame buffer.
func Render(st Status) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	text := func(y int, s string) {
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(s)
	}

	state := st.State
	if state == "" {
		state = "starting"
	}
	text(13, "BUZZLINE "+state)

	if st.Calibration != nil {
		dark := "light"
		if st.Calibration.LineIsDark {
			dark = "dark"
		}
		text(26, fmt.Sprintf("thr %d %s", st.Calibration.Threshold, dark))
	} else {
		text(26, "not calibrated")
	}

	if f := st.Frame; f != nil {
		text(39, fmt.Sprintf("%d %d %d", f.Readings[line.Left], f.Readings[line.Center], f.Readings[line.Right]))
		text(52, fmt.Sprintf("%s %s", f.Detection, f.Memory))
		text(62, fmt.Sprintf("L%d R%d", f.Command.Left, f.Command.Right))
		return img
	}
	// 18 columns of 7px
	msg := []rune(st.Message)
	for y := 45; len(msg) > 0 && y <= 62; y += 17 {
		n := len(msg)
		if n > 18 {
			n = 18
		}
		text(y, string(msg[:n]))
		msg = msg[n:]
	}
	return img
}

// addrBus talks to every device at a fixed address, letting the panel
// sit at something other than the driver's default.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b *addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// Open initialises the panel at addr on the named I2C bus.
func Open(busName string, addr uint16) (*ssd1306.Dev, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, errors.Wrap(err, "periph host init")
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open I2C bus %q", busName)
	}
	dev, err := ssd1306.NewI2C(&addrBus{Bus: bus, addr: addr}, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, errors.Wrapf(err, "ssd1306 at 0x%02X", addr)
	}
	logrus.Infof("display: ssd1306 initialized at 0x%02X", addr)

	splash := Render(Status{Message: "press the button"})
	if err := dev.Draw(dev.Bounds(), splash, image.Point{}); err != nil {
		logrus.Warnf("display: splash failed: %v", err)
	}
	return dev, bus, nil
}
