// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/buzzline/internal/line"
)

// FormatFrame renders a frame in the tuning format used on the bench:
//
//	L:950 C:120 R:950  Det:[0,1,0]
func FormatFrame(f Frame) string {
	return fmt.Sprintf("L:%d C:%d R:%d  Det:%s",
		f.Readings[line.Left], f.Readings[line.Center], f.Readings[line.Right], f.Detection)
}

// TextSink writes one text line per frame or event.
type TextSink struct {
	w io.Writer
}

// NewTextSink writes to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Frame(f Frame) {
	s.writeLine(FormatFrame(f))
}

func (s *TextSink) Event(e Event) {
	s.writeLine(e.Message)
}

func (s *TextSink) writeLine(text string) {
	if _, err := io.WriteString(s.w, text+"\r\n"); err != nil {
		logrus.Warnf("telemetry: serial write: %v", err)
	}
}

// OpenSerial opens a UART for a TextSink, 8N1.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 100,
	}
	rwc, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", port)
	}
	logrus.Infof("telemetry: serial port opened on %s at %d baud", port, baud)
	return rwc, nil
}
