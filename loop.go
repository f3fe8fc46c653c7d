package weft

import (
	"sync/atomic"
	"time"
)

// defaultLoopCapacity is the bounded size of the loop's output channel.
const defaultLoopCapacity = 128

// Loop multiplexes events from every registered source into one bounded
// output channel. Per-source FIFO order is preserved; ordering across
// sources is whatever the channel's send interleaving produces, so
// consumers must not infer causality between heterogeneous events.
type Loop struct {
	out     chan Event
	sources []Source
	running atomic.Bool
}

// NewLoop creates a loop with the default channel capacity.
func NewLoop() *Loop {
	return NewLoopWithCapacity(defaultLoopCapacity)
}

// NewLoopWithCapacity creates a loop with a specific channel capacity.
func NewLoopWithCapacity(capacity int) *Loop {
	if capacity < 1 {
		capacity = 1
	}
	return &Loop{out: make(chan Event, capacity)}
}

// AddSource registers a source. Sources added while the loop runs are
// started immediately.
func (l *Loop) AddSource(s Source) {
	l.sources = append(l.sources, s)
	if l.running.Load() {
		if err := s.Start(l.out); err != nil {
			logDebug("source start failed", "err", err)
		}
	}
}

// Attach wires a terminal's own events (mode changes) into the loop.
func (l *Loop) Attach(t *Terminal) {
	t.SetEventSink(l.Post)
}

// Post injects an event into the stream without blocking the caller;
// when the channel is full the event is dropped with a debug log.
func (l *Loop) Post(ev Event) {
	select {
	case l.out <- ev:
	default:
		logDebug("event dropped, loop channel full")
	}
}

// Start starts every source. Starting a running loop is a no-op. A
// source that fails to start is logged and skipped; the rest run.
func (l *Loop) Start() error {
	if !l.running.CompareAndSwap(false, true) {
		return nil
	}
	var first error
	for _, s := range l.sources {
		if err := s.Start(l.out); err != nil {
			logDebug("source start failed", "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Stop signals every source and waits for their tasks to drain. Stopping
// a stopped loop is a no-op.
func (l *Loop) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	for _, s := range l.sources {
		s.Stop()
	}
}

// Running reports whether the loop is active.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Events returns the output channel for select-based consumers.
func (l *Loop) Events() <-chan Event {
	return l.out
}

// WaitForEvent blocks until an event arrives or the timeout elapses.
func (l *Loop) WaitForEvent(timeout time.Duration) (Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-l.out:
		return ev, true
	case <-timer.C:
		return nil, false
	}
}

// PollEvent returns an event when one is immediately available.
func (l *Loop) PollEvent() (Event, bool) {
	select {
	case ev := <-l.out:
		return ev, true
	default:
		return nil, false
	}
}
