// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hardware

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/buzzline/internal/line"
)

// PeriphConfig wires the robot on a Raspberry Pi: light sensors on an
// ADS1115, button/LED/motor driver on GPIO.
type PeriphConfig struct {
	I2CBus         string
	ADCAddr        uint16
	FullScale      physic.ElectricPotential
	SensorChannels [line.NumSensors]int
	MarkerEnabled  bool
	MarkerChannel  int
	ButtonPin      string
	LEDPin         string
	LeftPWMPin     string
	LeftDirPin     string
	RightPWMPin    string
	RightDirPin    string
	PWMFrequency   physic.Frequency
}

// checkPins rejects a config that wires two roles to one GPIO.
func (cfg PeriphConfig) checkPins() error {
	roles := []struct{ role, name string }{
		{"button", cfg.ButtonPin},
		{"led", cfg.LEDPin},
		{"left pwm", cfg.LeftPWMPin},
		{"left dir", cfg.LeftDirPin},
		{"right pwm", cfg.RightPWMPin},
		{"right dir", cfg.RightDirPin},
	}
	seen := make(map[string]string, len(roles))
	for _, r := range roles {
		if other, ok := seen[r.name]; ok {
			return errors.Errorf("GPIO pin %q used for both %s and %s", r.name, other, r.role)
		}
		seen[r.name] = r.role
	}
	return nil
}

type motor struct {
	name string
	pwm  gpio.PinIO
	dir  gpio.PinIO
	freq physic.Frequency
}

func (m *motor) set(speed int) error {
	forward, mag := split(speed)
	level := gpio.Low
	if forward {
		level = gpio.High
	}
	if err := m.dir.Out(level); err != nil {
		return errors.Wrapf(err, "%s motor direction", m.name)
	}
	duty := gpio.Duty(int64(gpio.DutyMax) * int64(mag) / 255)
	if err := m.pwm.PWM(duty, m.freq); err != nil {
		return errors.Wrapf(err, "%s motor pwm", m.name)
	}
	return nil
}

// Periph drives the robot through periph.io.
type Periph struct {
	bus       i2c.BusCloser
	sensors   [line.NumSensors]ads1x15.PinADC
	marker    ads1x15.PinADC
	fullScale physic.ElectricPotential
	button    gpio.PinIO
	led       gpio.PinIO
	left      motor
	right     motor
}

var channels = []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// NewPeriph initialises the periph host, the ADC channels and the GPIO pins.
func NewPeriph(cfg PeriphConfig) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, errors.Wrapf(err, "open I2C bus %q", cfg.I2CBus)
	}

	opts := ads1x15.DefaultOpts
	opts.I2cAddress = cfg.ADCAddr
	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, errors.Wrapf(err, "ADS1115 at 0x%02X", cfg.ADCAddr)
	}

	p := &Periph{bus: bus, fullScale: cfg.FullScale}
	open := func(ch int) (ads1x15.PinADC, error) {
		if ch < 0 || ch >= len(channels) {
			return nil, errors.Errorf("ADC channel %d out of range", ch)
		}
		return adc.PinForChannel(channels[ch], cfg.FullScale, 860*physic.Hertz, ads1x15.SaveEnergy)
	}
	for i, ch := range cfg.SensorChannels {
		if p.sensors[i], err = open(ch); err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "sensor %d", i)
		}
	}
	if cfg.MarkerEnabled {
		if p.marker, err = open(cfg.MarkerChannel); err != nil {
			p.Close()
			return nil, errors.Wrap(err, "marker sensor")
		}
	}

	if err := cfg.checkPins(); err != nil {
		p.Close()
		return nil, err
	}
	pins := []struct {
		name string
		dst  *gpio.PinIO
	}{
		{cfg.ButtonPin, &p.button},
		{cfg.LEDPin, &p.led},
		{cfg.LeftPWMPin, &p.left.pwm},
		{cfg.LeftDirPin, &p.left.dir},
		{cfg.RightPWMPin, &p.right.pwm},
		{cfg.RightDirPin, &p.right.dir},
	}
	for _, pp := range pins {
		pin := gpioreg.ByName(pp.name)
		if pin == nil {
			p.Close()
			return nil, errors.Errorf("GPIO pin %q not found", pp.name)
		}
		*pp.dst = pin
	}
	p.left.name, p.left.freq = "left", cfg.PWMFrequency
	p.right.name, p.right.freq = "right", cfg.PWMFrequency

	// active low against the internal pull-up
	if err := p.button.In(gpio.PullUp, gpio.NoEdge); err != nil {
		p.Close()
		return nil, errors.Wrap(err, "button pin")
	}
	if err := p.led.Out(gpio.Low); err != nil {
		p.Close()
		return nil, errors.Wrap(err, "LED pin")
	}

	logrus.Infof("hardware: periph ready (ADS1115 0x%02X on %q, channels %v)", cfg.ADCAddr, cfg.I2CBus, cfg.SensorChannels)
	return p, nil
}

func (p *Periph) read(pin ads1x15.PinADC) (int, error) {
	s, err := pin.Read()
	if err != nil {
		return 0, err
	}
	return rescale(int64(s.V), int64(p.fullScale)), nil
}

func (p *Periph) ReadSensors() (line.Readings, error) {
	var r line.Readings
	for i, pin := range p.sensors {
		v, err := p.read(pin)
		if err != nil {
			return line.Readings{}, errors.Wrapf(err, "sensor %d", i)
		}
		r[i] = v
	}
	return r, nil
}

// ReadMarker reads full scale when no marker channel is configured.
func (p *Periph) ReadMarker() (int, error) {
	if p.marker == nil {
		return line.MaxReading, nil
	}
	v, err := p.read(p.marker)
	return v, errors.Wrap(err, "marker")
}

func (p *Periph) ButtonDown() (bool, error) {
	return p.button.Read() == gpio.Low, nil
}

func (p *Periph) SetMotors(cmd line.MotorCommand) error {
	if err := p.left.set(cmd.Left); err != nil {
		return err
	}
	return p.right.set(cmd.Right)
}

func (p *Periph) SetStatus(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return p.led.Out(level)
}

// Close halts the ADC channels and releases the I2C bus.
func (p *Periph) Close() error {
	for _, pin := range p.sensors {
		if pin != nil {
			pin.Halt()
		}
	}
	if p.marker != nil {
		p.marker.Halt()
	}
	return p.bus.Close()
}
