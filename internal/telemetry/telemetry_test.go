package telemetry

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/buzzline/internal/line"
)

type recorder struct {
	mu     sync.Mutex
	frames []Frame
	events []Event
	gate   chan struct{}
}

func (r *recorder) Frame(f Frame) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recorder) Event(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestFormatFrame(t *testing.T) {
	f := Frame{
		Readings:  line.Readings{950, 120, 950},
		Detection: line.Detection{Center: true},
	}
	if got, want := FormatFrame(f), "L:950 C:120 R:950  Det:[0,1,0]"; got != want {
		t.Errorf("FormatFrame = %q, want %q", got, want)
	}
}

func TestTextSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)
	s.Event(Event{Message: "marker detected - stopping"})
	s.Frame(Frame{Readings: line.Readings{1, 2, 3}, Detection: line.Detection{Left: true, Right: true}})

	want := "marker detected - stopping\r\nL:1 C:2 R:3  Det:[1,0,1]\r\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b}
	m.Frame(Frame{State: "running"})
	m.Event(Event{Message: "hi"})
	for i, r := range []*recorder{a, b} {
		if len(r.frames) != 1 || len(r.events) != 1 {
			t.Errorf("sink %d got %d frames %d events", i, len(r.frames), len(r.events))
		}
	}
}

func TestAsyncDeliversInOrder(t *testing.T) {
	rec := &recorder{}
	a := NewAsync(rec, 16)
	for i := 0; i < 10; i++ {
		a.Frame(Frame{Readings: line.Readings{i, 0, 0}})
	}
	a.Close()

	if len(rec.frames) != 10 {
		t.Fatalf("delivered %d frames", len(rec.frames))
	}
	for i, f := range rec.frames {
		if f.Readings[line.Left] != i {
			t.Errorf("frame %d out of order: %v", i, f.Readings)
		}
	}
	if a.Dropped() != 0 {
		t.Errorf("dropped = %d", a.Dropped())
	}
}

func TestAsyncDropsWhenFull(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	a := NewAsync(rec, 2)

	start := time.Now()
	for i := 0; i < 50; i++ {
		a.Frame(Frame{})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("offering to a stuck sink blocked for %v", elapsed)
	}
	// at most one in flight plus two queued
	if a.Dropped() < 47 {
		t.Errorf("dropped = %d, want at least 47", a.Dropped())
	}
	close(rec.gate)
	a.Close()
}
