// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/buzzline/internal/config"
	"github.com/relabs-tech/buzzline/internal/display"
	"github.com/relabs-tech/buzzline/internal/telemetry"
)

const telemetryQueue = 256

// OpenSinks connects every telemetry output the configuration enables.
// The returned sink never blocks the caller. The returned func flushes it and
// releases the transports.
func OpenSinks(cfg *config.Config) (telemetry.Sink, func(), error) {
	sinks := telemetry.Multi{telemetry.NewLogSink()}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.MQTTBroker != "" {
		client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDFollower)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Disconnect(250) })
		sinks = append(sinks, telemetry.NewMQTTSink(client, telemetry.Topics{
			Frames:      cfg.TopicFrames,
			Events:      cfg.TopicEvents,
			Calibration: cfg.TopicCalibration,
		}))
	}

	if cfg.SerialPort != "" {
		port, err := telemetry.OpenSerial(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { port.Close() })
		sinks = append(sinks, telemetry.NewTextSink(port))
		logrus.Infof("telemetry: serial output on %s at %d baud", cfg.SerialPort, cfg.SerialBaudRate)
	}

	if cfg.DisplayEnabled {
		dev, bus, err := display.Open(cfg.DisplayI2CBus, cfg.DisplayI2CAddr)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "status display")
		}
		closers = append(closers, func() {
			dev.Halt()
			bus.Close()
		})
		sinks = append(sinks, display.NewSink(dev))
	}

	async := telemetry.NewAsync(sinks, telemetryQueue)
	return async, func() {
		async.Close()
		if n := async.Dropped(); n > 0 {
			logrus.Warnf("telemetry: %d items dropped on a full queue", n)
		}
		cleanup()
	}, nil
}
