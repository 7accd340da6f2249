// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"github.com/sirupsen/logrus"
)

// LogSink writes telemetry through logrus.
type LogSink struct {
	Logger logrus.FieldLogger
}

// NewLogSink logs through the standard logrus logger.
func NewLogSink() *LogSink {
	return &LogSink{Logger: logrus.StandardLogger()}
}

func (s *LogSink) Frame(f Frame) {
	s.Logger.WithFields(logrus.Fields{
		"state":  f.State,
		"memory": f.Memory,
	}).Infof("telemetry: %s", FormatFrame(f))
}

func (s *LogSink) Event(e Event) {
	entry := s.Logger.WithField("kind", e.Kind)
	if e.State != "" {
		entry = entry.WithField("state", e.State)
	}
	entry.Info(e.Message)
}
