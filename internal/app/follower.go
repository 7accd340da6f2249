// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/buzzline/internal/config"
	"github.com/relabs-tech/buzzline/internal/controller"
	"github.com/relabs-tech/buzzline/internal/hardware"
	"github.com/relabs-tech/buzzline/internal/line"
	"github.com/relabs-tech/buzzline/internal/metrics"
)

// Robot is a hardware backend the follower can release.
type Robot interface {
	controller.Hardware
	io.Closer
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// ControllerConfig converts the file settings into controller tuning.
func ControllerConfig(cfg *config.Config) controller.Config {
	return controller.Config{
		Speeds: line.Speeds{Base: cfg.BaseSpeed, Turn: cfg.TurnSpeed},
		Calibration: line.CalibratorConfig{
			Samples:        cfg.CalibrationSamples,
			SampleInterval: ms(cfg.CalibrationSampleInterval),
			PollInterval:   ms(cfg.ButtonPollInterval),
			DebounceDelay:  ms(cfg.DebounceDelay),
		},
		CycleDelay:        ms(cfg.CycleDelay),
		RestartSettle:     ms(cfg.RestartSettleDelay),
		TelemetryInterval: ms(cfg.TelemetryInterval),
		MarkerEnabled:     cfg.MarkerEnabled,
		MarkerThreshold:   cfg.MarkerThreshold,
	}
}

// OpenRobot initialises the configured backend. The sim backend is also
// returned on its own so the operator console can move it.
func OpenRobot(cfg *config.Config) (Robot, *hardware.Sim, error) {
	switch cfg.Backend {
	case "periph":
		p, err := hardware.NewPeriph(hardware.PeriphConfig{
			I2CBus:         cfg.ADCI2CBus,
			ADCAddr:        cfg.ADCI2CAddr,
			FullScale:      physic.ElectricPotential(cfg.ADCFullScaleMV) * physic.MilliVolt,
			SensorChannels: [line.NumSensors]int{cfg.SensorLeftChannel, cfg.SensorCenterChannel, cfg.SensorRightChannel},
			MarkerEnabled:  cfg.MarkerEnabled,
			MarkerChannel:  cfg.MarkerChannel,
			ButtonPin:      cfg.ButtonPin,
			LEDPin:         cfg.LEDPin,
			LeftPWMPin:     cfg.MotorLeftPWMPin,
			LeftDirPin:     cfg.MotorLeftDirPin,
			RightPWMPin:    cfg.MotorRightPWMPin,
			RightDirPin:    cfg.MotorRightDirPin,
			PWMFrequency:   physic.Frequency(cfg.PWMFrequency) * physic.Hertz,
		})
		return p, nil, err
	case "gopigo":
		g, err := hardware.NewGoPiGo(hardware.GoPiGoConfig{
			SensorPins:    [line.NumSensors]string{cfg.GoPiGoSensorLeftPin, cfg.GoPiGoSensorCenterPin, cfg.GoPiGoSensorRightPin},
			MarkerEnabled: cfg.MarkerEnabled && cfg.GoPiGoMarkerPin != "",
			MarkerPin:     cfg.GoPiGoMarkerPin,
			ButtonPin:     cfg.GoPiGoButtonPin,
		})
		return g, nil, err
	case "sim":
		s := hardware.NewSim(hardware.SimConfig{
			Curvature:   cfg.SimCurvature,
			Noise:       cfg.SimNoise,
			Seed:        cfg.SimSeed,
			MarkerAfter: ms(cfg.SimMarkerAfter),
		}, nil)
		logrus.Info("hardware: simulated robot (ENTER presses the button, b/l moves it to background/line, s stops, q quits)")
		return s, s, nil
	}
	return nil, nil, errors.Errorf("unknown backend %q", cfg.Backend)
}

// RunFollower runs the line follower until ctx is cancelled or the
// operator quits.
func RunFollower(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("configuration not loaded")
	}

	robot, sim, err := OpenRobot(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := robot.Close(); err != nil {
			logrus.Warnf("follower: hardware close: %v", err)
		}
	}()

	sink, closeSinks, err := OpenSinks(cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	runID := uuid.NewString()
	opts := []controller.Option{controller.WithRunID(runID)}
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(controller.StateNames())
		srv := prom.Serve(cfg.MetricsAddr)
		defer srv.Close()
		opts = append(opts, controller.WithMetrics(prom))
	}

	c := controller.New(ControllerConfig(cfg), robot, sink, opts...)
	logrus.WithField("run_id", runID).Infof("follower: starting on %s backend", cfg.Backend)

	ops := make(chan Op, 8)
	go ReadOps(os.Stdin, ops)

	return Loop(ctx, c, sim, ops)
}

// Loop steps c on its own schedule and applies operator commands between
// steps. It shuts the robot down before returning.
func Loop(ctx context.Context, c *controller.Controller, sim *hardware.Sim, ops <-chan Op) error {
	c.Start(time.Now())
	defer c.Shutdown()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("follower: shutting down")
			return nil
		case op, ok := <-ops:
			if !ok {
				ops = nil
				continue
			}
			if op == OpQuit {
				logrus.Info("follower: quit requested")
				return nil
			}
			op.apply(c, sim)
		case <-timer.C:
			timer.Reset(c.Step(time.Now()))
		}
	}
}
