package line

import (
	"errors"
	"testing"
	"time"
)

// scriptedProbe returns presses and readings from fixed scripts.
type scriptedProbe struct {
	presses   []bool
	readings  []Readings
	failEvery int
	reads     int
}

func (p *scriptedProbe) Pressed() (bool, error) {
	if len(p.presses) == 0 {
		return false, nil
	}
	v := p.presses[0]
	p.presses = p.presses[1:]
	return v, nil
}

func (p *scriptedProbe) ReadSensors() (Readings, error) {
	p.reads++
	if p.failEvery > 0 && p.reads%p.failEvery == 0 {
		return Readings{}, errors.New("adc busy")
	}
	if len(p.readings) == 0 {
		return Readings{}, errors.New("script exhausted")
	}
	r := p.readings[0]
	p.readings = p.readings[1:]
	return r, nil
}

func repeat(r Readings, n int) []Readings {
	out := make([]Readings, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func runToDone(t *testing.T, c *Calibrator, maxSteps int) []time.Duration {
	t.Helper()
	var waits []time.Duration
	for i := 0; i < maxSteps && !c.Done(); i++ {
		waits = append(waits, c.Step())
	}
	if !c.Done() {
		t.Fatalf("calibration not done after %d steps, phase %v", maxSteps, c.Phase())
	}
	return waits
}

func TestCalibratorSequence(t *testing.T) {
	cfg := CalibratorConfig{Samples: 4, SampleInterval: 20 * time.Millisecond, PollInterval: 10 * time.Millisecond, DebounceDelay: 200 * time.Millisecond}
	probe := &scriptedProbe{
		presses: []bool{false, false, true, false, true},
		readings: append(
			[]Readings{{900, 880, 910}, {902, 882, 912}, {898, 878, 908}, {900, 880, 910}},
			repeat(Readings{100, 120, 90}, 4)...,
		),
	}
	var msgs []string
	c := NewCalibrator(cfg, probe, func(m string) { msgs = append(msgs, m) })

	waits := runToDone(t, c, 100)
	want := []time.Duration{
		10 * time.Millisecond, 10 * time.Millisecond, 200 * time.Millisecond,
		20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond,
		10 * time.Millisecond, 200 * time.Millisecond,
		20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond,
	}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}

	cal, ok := c.Result()
	if !ok {
		t.Fatal("no result")
	}
	wantRefs := [NumSensors]SensorReference{{900, 100}, {880, 120}, {910, 90}}
	if cal.References != wantRefs {
		t.Errorf("references = %+v, want %+v", cal.References, wantRefs)
	}
	// avgWhite = 896, avgLine = 103
	if cal.Threshold != 499 {
		t.Errorf("threshold = %d, want 499", cal.Threshold)
	}
	if !cal.LineIsDark {
		t.Error("expected dark line")
	}

	wantMsgs := []string{
		"calibration: place the robot on the BACKGROUND and press the button",
		"background measured -> L:900 C:880 R:910",
		"calibration: now place the robot on the LINE and press the button",
		"line measured -> L:100 C:120 R:90",
		"threshold set to 499",
		"line is dark? YES",
	}
	if len(msgs) != len(wantMsgs) {
		t.Fatalf("messages = %q", msgs)
	}
	for i := range wantMsgs {
		if msgs[i] != wantMsgs[i] {
			t.Errorf("message[%d] = %q, want %q", i, msgs[i], wantMsgs[i])
		}
	}
}

func TestCalibratorDropsFailedSamples(t *testing.T) {
	cfg := CalibratorConfig{Samples: 5, SampleInterval: time.Millisecond, PollInterval: time.Millisecond}
	probe := &scriptedProbe{
		presses:   []bool{true, true},
		readings:  append(repeat(Readings{800, 800, 800}, 5), repeat(Readings{200, 200, 200}, 5)...),
		failEvery: 3,
	}
	c := NewCalibrator(cfg, probe, nil)
	runToDone(t, c, 100)

	cal, _ := c.Result()
	for i, ref := range cal.References {
		if ref.WhiteLevel != 800 || ref.LineLevel != 200 {
			t.Errorf("sensor %d: %+v", i, ref)
		}
	}
	if probe.reads != 14 {
		t.Errorf("reads = %d, want 14 (10 samples plus 4 failures)", probe.reads)
	}
}

func TestCalibratorWaitsForever(t *testing.T) {
	c := NewCalibrator(DefaultCalibratorConfig, &scriptedProbe{}, nil)
	for i := 0; i < 1000; i++ {
		if d := c.Step(); d != DefaultCalibratorConfig.PollInterval {
			t.Fatalf("step %d waited %v", i, d)
		}
	}
	if c.Phase() != PhaseAwaitBackground {
		t.Errorf("phase = %v", c.Phase())
	}
}

func TestDeriveIdenticalPhases(t *testing.T) {
	for _, v := range []int{0, 1, 512, 777, MaxReading} {
		r := Readings{v, v, v}
		first := Derive(r, r)
		if first.Threshold != v {
			t.Errorf("Derive(%d) threshold = %d", v, first.Threshold)
		}
		for i := 0; i < 3; i++ {
			if again := Derive(r, r); again != first {
				t.Errorf("Derive(%d) not stable: %+v vs %+v", v, again, first)
			}
		}
		if first.LineIsDark {
			t.Errorf("Derive(%d) reports a dark line for equal levels", v)
		}
	}
}

func TestDeriveLightLine(t *testing.T) {
	cal := Derive(Readings{150, 160, 170}, Readings{850, 860, 870})
	if cal.LineIsDark {
		t.Error("light line reported dark")
	}
	if cal.Threshold != 510 {
		t.Errorf("threshold = %d, want 510", cal.Threshold)
	}
}
