// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hardware

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gobot.io/x/gobot/drivers/aio"
	g "gobot.io/x/gobot/platforms/dexter/gopigo3"
	"gobot.io/x/gobot/platforms/raspi"

	"github.com/relabs-tech/buzzline/internal/line"
)

// GoPiGo3 boards digitise the grove ports with 12 bits.
const gopigoFullScale = 4095

// GoPiGoConfig names the grove ports of the light sensors and the
// Raspberry Pi header pin of the button.
type GoPiGoConfig struct {
	SensorPins    [line.NumSensors]string
	MarkerEnabled bool
	MarkerPin     string
	ButtonPin     string
}

// GoPiGo drives a Dexter GoPiGo3 through gobot.
type GoPiGo struct {
	pi      *raspi.Adaptor
	board   *g.Driver
	sensors [line.NumSensors]*aio.GroveLightSensorDriver
	marker  *aio.GroveLightSensorDriver
	button  string
}

func NewGoPiGo(cfg GoPiGoConfig) (*GoPiGo, error) {
	pi := raspi.NewAdaptor()
	if err := pi.Connect(); err != nil {
		return nil, errors.Wrap(err, "raspi connect")
	}
	board := g.NewDriver(pi)
	if err := board.Start(); err != nil {
		pi.Finalize()
		return nil, errors.Wrap(err, "gopigo3 start")
	}

	gp := &GoPiGo{pi: pi, board: board, button: cfg.ButtonPin}
	for i, pin := range cfg.SensorPins {
		gp.sensors[i] = aio.NewGroveLightSensorDriver(board, pin)
	}
	if cfg.MarkerEnabled {
		gp.marker = aio.NewGroveLightSensorDriver(board, cfg.MarkerPin)
	}

	logrus.Infof("hardware: gopigo3 ready (sensors %v, button pin %s)", cfg.SensorPins, cfg.ButtonPin)
	return gp, nil
}

func (gp *GoPiGo) read(s *aio.GroveLightSensorDriver) (int, error) {
	v, err := s.Read()
	if err != nil {
		return 0, err
	}
	return rescale(int64(v), gopigoFullScale), nil
}

func (gp *GoPiGo) ReadSensors() (line.Readings, error) {
	var r line.Readings
	for i, s := range gp.sensors {
		v, err := gp.read(s)
		if err != nil {
			return line.Readings{}, errors.Wrapf(err, "sensor %s", s.Pin())
		}
		r[i] = v
	}
	return r, nil
}

func (gp *GoPiGo) ReadMarker() (int, error) {
	if gp.marker == nil {
		return line.MaxReading, nil
	}
	v, err := gp.read(gp.marker)
	return v, errors.Wrap(err, "marker")
}

// ButtonDown treats a low header pin as pressed.
func (gp *GoPiGo) ButtonDown() (bool, error) {
	v, err := gp.pi.DigitalRead(gp.button)
	if err != nil {
		return false, errors.Wrapf(err, "button pin %s", gp.button)
	}
	return v == 0, nil
}

// power maps a -255..255 speed onto the board's -100..100 percent.
func power(speed int) int8 {
	forward, mag := split(speed)
	p := int8(mag * 100 / 255)
	if !forward {
		return -p
	}
	return p
}

func (gp *GoPiGo) SetMotors(cmd line.MotorCommand) error {
	if err := gp.board.SetMotorPower(g.MOTOR_LEFT, power(cmd.Left)); err != nil {
		return errors.Wrap(err, "left motor")
	}
	return errors.Wrap(gp.board.SetMotorPower(g.MOTOR_RIGHT, power(cmd.Right)), "right motor")
}

// SetStatus lights both eyes green while running.
func (gp *GoPiGo) SetStatus(on bool) error {
	var green uint8
	if on {
		green = 255
	}
	return gp.board.SetLED(g.LED_EYE_LEFT+g.LED_EYE_RIGHT, 0, green, 0)
}

func (gp *GoPiGo) Close() error {
	if err := gp.board.Halt(); err != nil {
		logrus.Warnf("hardware: gopigo3 halt: %v", err)
	}
	return gp.pi.Finalize()
}
