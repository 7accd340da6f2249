// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"sync"
	"sync/atomic"
)

type envelope struct {
	frame *Frame
	event *Event
}

// Async moves delivery to the wrapped sink onto its own goroutine. When
// the queue is full new items are dropped so callers never wait.
type Async struct {
	next    Sink
	queue   chan envelope
	dropped atomic.Uint64
	wg      sync.WaitGroup
	once    sync.Once
}

// NewAsync starts the delivery goroutine with a queue of size items.
func NewAsync(next Sink, size int) *Async {
	if size <= 0 {
		size = 64
	}
	a := &Async{next: next, queue: make(chan envelope, size)}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for env := range a.queue {
		if env.frame != nil {
			a.next.Frame(*env.frame)
		} else if env.event != nil {
			a.next.Event(*env.event)
		}
	}
}

func (a *Async) Frame(f Frame) {
	a.offer(envelope{frame: &f})
}

func (a *Async) Event(e Event) {
	a.offer(envelope{event: &e})
}

func (a *Async) offer(env envelope) {
	select {
	case a.queue <- env:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many items were discarded on a full queue.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close delivers what is queued and stops the goroutine. Frame and Event
// must not be called after Close.
func (a *Async) Close() {
	a.once.Do(func() {
		close(a.queue)
	})
	a.wg.Wait()
}
