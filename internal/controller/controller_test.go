package controller

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/buzzline/internal/line"
	"github.com/relabs-tech/buzzline/internal/telemetry"
)

type fakeHW struct {
	readings  line.Readings
	sensorErr error
	marker    int
	markerErr error
	buttons   []bool
	held      bool

	motors []line.MotorCommand
	status []bool
}

func (h *fakeHW) ReadSensors() (line.Readings, error) {
	return h.readings, h.sensorErr
}

func (h *fakeHW) ReadMarker() (int, error) {
	return h.marker, h.markerErr
}

func (h *fakeHW) ButtonDown() (bool, error) {
	if len(h.buttons) == 0 {
		return h.held, nil
	}
	v := h.buttons[0]
	h.buttons = h.buttons[1:]
	return v, nil
}

func (h *fakeHW) SetMotors(cmd line.MotorCommand) error {
	h.motors = append(h.motors, cmd)
	return nil
}

func (h *fakeHW) SetStatus(on bool) error {
	h.status = append(h.status, on)
	return nil
}

func (h *fakeHW) lastMotors() line.MotorCommand {
	if len(h.motors) == 0 {
		return line.MotorCommand{Left: -999, Right: -999}
	}
	return h.motors[len(h.motors)-1]
}

func (h *fakeHW) lastStatus() bool {
	return len(h.status) > 0 && h.status[len(h.status)-1]
}

// press queues a release followed by a press.
func (h *fakeHW) press() {
	h.buttons = append(h.buttons, false, true)
}

type sinkRecorder struct {
	frames []telemetry.Frame
	events []telemetry.Event
}

func (s *sinkRecorder) Frame(f telemetry.Frame) { s.frames = append(s.frames, f) }
func (s *sinkRecorder) Event(e telemetry.Event) { s.events = append(s.events, e) }

func (s *sinkRecorder) count(substr string) int {
	n := 0
	for _, e := range s.events {
		if strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}

func (s *sinkRecorder) saw(substr string) bool {
	return s.count(substr) > 0
}

type harness struct {
	t    *testing.T
	hw   *fakeHW
	sink *sinkRecorder
	c    *Controller
	now  time.Time
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		t:    t,
		hw:   &fakeHW{marker: line.MaxReading},
		sink: &sinkRecorder{},
		now:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	h.c = New(DefaultConfig, h.hw, h.sink, WithRunID("test-run"))
	h.c.Start(h.now)
	return h
}

func (h *harness) step() {
	h.now = h.now.Add(h.c.Step(h.now))
}

func (h *harness) stepUntil(what string, cond func() bool) {
	h.t.Helper()
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		h.step()
	}
	h.t.Fatalf("gave up waiting for %s (state %v)", what, h.c.State())
}

func (h *harness) pressAndWait(what string, cond func() bool) {
	h.t.Helper()
	h.hw.press()
	h.stepUntil(what, cond)
}

// calibrate walks a calibration already in progress on the scenario
// surfaces: background 900, line 100.
func (h *harness) calibrate() {
	h.t.Helper()
	background := h.sink.count("background measured")
	done := h.sink.count("calibration complete")
	h.hw.readings = line.Readings{900, 900, 900}
	h.pressAndWait("background sampled", func() bool { return h.sink.count("background measured") > background })
	h.hw.readings = line.Readings{100, 100, 100}
	h.pressAndWait("calibration result", func() bool { return h.sink.count("calibration complete") > done })
}

func (h *harness) startRunning() {
	h.t.Helper()
	h.pressAndWait("calibrating", func() bool { return h.c.State() == Calibrating })
	h.calibrate()
	if h.c.State() != AwaitingStart {
		h.t.Fatalf("after first calibration state = %v", h.c.State())
	}
	h.pressAndWait("running", func() bool { return h.c.State() == Running })
}

func TestStartIdlesHardware(t *testing.T) {
	h := newHarness(t)
	if h.hw.lastMotors() != line.Halt {
		t.Errorf("motors after start = %+v", h.hw.lastMotors())
	}
	if h.hw.lastStatus() {
		t.Error("status on before running")
	}
	if h.c.State() != AwaitingFirstCalibration {
		t.Errorf("state = %v", h.c.State())
	}
	if !h.sink.saw("press the button to start calibration") {
		t.Error("missing start prompt")
	}
}

func TestFirstRun(t *testing.T) {
	h := newHarness(t)
	h.startRunning()

	cal, _ := h.c.Calibration()
	if cal.Threshold != 500 || !cal.LineIsDark {
		t.Fatalf("calibration = %+v", cal)
	}
	if !h.hw.lastStatus() {
		t.Error("status indicator off while running")
	}

	var calEvent *telemetry.Event
	for i := range h.sink.events {
		if h.sink.events[i].Kind == telemetry.KindCalibration {
			calEvent = &h.sink.events[i]
		}
	}
	if calEvent == nil || calEvent.Calibration == nil || calEvent.Calibration.Threshold != 500 {
		t.Errorf("calibration event = %+v", calEvent)
	}
	if calEvent != nil && calEvent.RunID != "test-run" {
		t.Errorf("run id = %q", calEvent.RunID)
	}

	h.hw.readings = line.Readings{950, 120, 950}
	h.step()
	if got := h.hw.lastMotors(); got != (line.MotorCommand{Left: 200, Right: 200}) {
		t.Errorf("centered command = %+v", got)
	}

	h.hw.readings = line.Readings{120, 950, 950}
	h.step()
	h.hw.readings = line.Readings{950, 950, 950}
	h.step()
	if got := h.hw.lastMotors(); got != (line.MotorCommand{Left: 120, Right: -60}) {
		t.Errorf("search after left = %+v", got)
	}
	if h.c.Memory() != line.DirectionLeft {
		t.Errorf("memory = %v", h.c.Memory())
	}
}

func TestHeldButtonIsOnePress(t *testing.T) {
	h := newHarness(t)
	h.hw.held = true
	for i := 0; i < 100; i++ {
		h.step()
	}
	if h.c.State() != Calibrating {
		t.Fatalf("state = %v", h.c.State())
	}
	if h.sink.saw("background measured") {
		t.Error("held button started background sampling")
	}
}

func TestMarkerStops(t *testing.T) {
	h := newHarness(t)
	h.startRunning()

	h.hw.readings = line.Readings{950, 120, 950}
	h.now = h.now.Add(DefaultConfig.TelemetryInterval)
	h.sink.frames = nil
	h.hw.marker = 10
	h.step()

	if h.c.State() != Stopped {
		t.Fatalf("state = %v", h.c.State())
	}
	// the stopping cycle still reports what it saw
	if len(h.sink.frames) != 1 {
		t.Fatalf("frames on stop cycle = %d, want 1", len(h.sink.frames))
	}
	if f := h.sink.frames[0]; f.Readings != (line.Readings{950, 120, 950}) || f.State != Stopped.String() {
		t.Errorf("stop frame = %+v", f)
	}
	if h.hw.lastMotors() != line.Halt {
		t.Errorf("motors = %+v", h.hw.lastMotors())
	}
	if h.hw.lastStatus() {
		t.Error("status still on")
	}
	if !h.sink.saw("marker detected") {
		t.Error("missing stop event")
	}

	// nothing moves until the next press
	before := len(h.hw.motors)
	for i := 0; i < 20; i++ {
		h.step()
	}
	if len(h.hw.motors) != before {
		t.Errorf("motors written while stopped")
	}
}

func TestMarkerIgnoredWhenDisabledOrFailing(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		marker  int
		err     error
	}{
		{"disabled", false, 0, nil},
		{"read error", true, 0, errors.New("adc nack")},
		{"at threshold", true, 50, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			cfg := DefaultConfig
			cfg.MarkerEnabled = tt.enabled
			h.c = New(cfg, h.hw, h.sink)
			h.c.Start(h.now)
			h.startRunning()

			h.hw.marker, h.hw.markerErr = tt.marker, tt.err
			h.hw.readings = line.Readings{950, 120, 950}
			h.step()
			if h.c.State() != Running {
				t.Errorf("state = %v", h.c.State())
			}
		})
	}
}

func TestExplicitStop(t *testing.T) {
	h := newHarness(t)
	h.pressAndWait("calibrating", func() bool { return h.c.State() == Calibrating })
	h.c.Stop("stop requested")
	if h.c.State() != Calibrating {
		t.Fatalf("stop interrupted calibration: %v", h.c.State())
	}

	h.calibrate()
	h.pressAndWait("running", func() bool { return h.c.State() == Running })
	h.c.Stop("stop requested")
	if h.c.State() != Stopped || h.hw.lastMotors() != line.Halt {
		t.Errorf("state = %v motors = %+v", h.c.State(), h.hw.lastMotors())
	}
}

func TestRestartRecalibratesAndRuns(t *testing.T) {
	h := newHarness(t)
	h.startRunning()
	h.hw.readings = line.Readings{120, 950, 950}
	h.step()
	h.c.Stop("stop requested")

	h.pressAndWait("recalibrating", func() bool { return h.c.State() == Calibrating })
	if !h.sink.saw("restarting") {
		t.Error("missing restart message")
	}
	h.calibrate()
	if h.c.State() != Running {
		t.Fatalf("after recalibration state = %v, want running without another press", h.c.State())
	}
	if !h.hw.lastStatus() {
		t.Error("status off after restart")
	}
	if h.c.Memory() != line.DirectionCenter {
		t.Errorf("memory carried across runs: %v", h.c.Memory())
	}
}

func TestTelemetryRateLimited(t *testing.T) {
	h := newHarness(t)
	h.startRunning()
	h.sink.frames = nil

	h.hw.readings = line.Readings{950, 120, 950}
	start := h.now
	for h.now.Sub(start) < time.Second {
		h.step()
	}
	// one frame on entry, then one per 300ms window
	if len(h.sink.frames) != 4 {
		t.Fatalf("frames = %d, want 4", len(h.sink.frames))
	}
	for i := 1; i < len(h.sink.frames); i++ {
		if gap := h.sink.frames[i].Time.Sub(h.sink.frames[i-1].Time); gap < DefaultConfig.TelemetryInterval {
			t.Errorf("frame %d only %v after previous", i, gap)
		}
	}
	f := h.sink.frames[0]
	if f.Detection != (line.Detection{Center: true}) || f.Command != (line.MotorCommand{Left: 200, Right: 200}) {
		t.Errorf("frame = %+v", f)
	}
}

func TestSensorErrorHaltsCycle(t *testing.T) {
	h := newHarness(t)
	h.startRunning()

	h.hw.sensorErr = errors.New("i2c timeout")
	h.step()
	if h.hw.lastMotors() != line.Halt {
		t.Errorf("motors = %+v", h.hw.lastMotors())
	}
	if h.c.State() != Running {
		t.Errorf("state = %v", h.c.State())
	}

	h.hw.sensorErr = nil
	h.hw.readings = line.Readings{950, 120, 950}
	h.step()
	if got := h.hw.lastMotors(); got != (line.MotorCommand{Left: 200, Right: 200}) {
		t.Errorf("recovered command = %+v", got)
	}
}
