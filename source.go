package weft

import (
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	// maxDrainPerCycle bounds how many events the input source emits per
	// cycle so heavy input cannot monopolise the scheduler.
	maxDrainPerCycle = 64

	// idleSleep is how long the input source rests when a cycle emitted
	// nothing.
	idleSleep = time.Millisecond

	// inputPollInterval is the reader readiness timeout per cycle; it is
	// finite so Stop never waits on a stuck read.
	inputPollInterval = 10 * time.Millisecond

	// stopJoinTimeout bounds how long Stop waits for a source task. A
	// task wedged in a system call is abandoned rather than hanging the
	// caller; its loop exits at the next readiness timeout.
	stopJoinTimeout = time.Second
)

// Source produces events onto a shared channel. Start and Stop are
// idempotent: redundant calls are no-ops. After Stop returns, Running
// reports false and the source emits nothing further.
type Source interface {
	Start(out chan<- Event) error
	Stop()
	Running() bool
}

// lifecycle implements the compare-and-set start/stop protocol shared by
// every source.
type lifecycle struct {
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// begin transitions stopped -> running. False means already running.
func (l *lifecycle) begin() bool {
	if !l.running.CompareAndSwap(false, true) {
		return false
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	return true
}

// halt transitions running -> stopped and joins the task with a timeout.
func (l *lifecycle) halt() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	close(l.stop)
	select {
	case <-l.done:
	case <-time.After(stopJoinTimeout):
		logDebug("source task did not exit before join timeout")
	}
}

// Running reports whether the source is active.
func (l *lifecycle) Running() bool {
	return l.running.Load()
}

// finish marks the task dead from inside the loop (EOF, error, panic).
func (l *lifecycle) finish() {
	l.running.Store(false)
	close(l.done)
}

// stopped reports whether Stop was requested.
func (l *lifecycle) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// send delivers an event unless the source is being stopped. Returns
// false when the stop channel won the race.
func (l *lifecycle) send(out chan<- Event, ev Event) bool {
	select {
	case <-l.stop:
		return false
	case out <- ev:
		return true
	}
}

// InputSource couples the reader and the parser into an event producer.
// Each cycle drains at most maxDrainPerCycle events, then yields when it
// emitted and rests otherwise.
type InputSource struct {
	lifecycle
	reader *Reader
	parser *Parser
}

// NewInputSource creates an input source reading the given descriptor.
func NewInputSource(fd int) *InputSource {
	return &InputSource{reader: NewReader(fd), parser: NewParser()}
}

// Start launches the source task. Starting a running source is a no-op.
func (s *InputSource) Start(out chan<- Event) error {
	if !s.begin() {
		return nil
	}
	go s.run(out)
	return nil
}

// Stop halts the source task.
func (s *InputSource) Stop() {
	s.halt()
}

func (s *InputSource) run(out chan<- Event) {
	defer s.finish()
	for !s.stopped() {
		ready, err := s.reader.WaitForData(inputPollInterval)
		if err == io.EOF {
			return
		}
		if err != nil {
			logDebug("input reader failed", "err", err)
			return
		}
		if ready {
			data, rerr := s.reader.ReadAvailable()
			if rerr == io.EOF {
				return
			}
			if rerr != nil {
				logDebug("input read failed", "err", rerr)
				return
			}
			s.parser.Feed(data)
		} else if s.parser.Pending() && time.Since(s.parser.PendingSince()) >= escapeTimeout {
			s.parser.Expire()
		}

		emitted := 0
		for emitted < maxDrainPerCycle {
			ev, ok := s.parser.Next()
			if !ok {
				break
			}
			if !s.send(out, ev) {
				return
			}
			emitted++
		}
		if emitted > 0 {
			runtime.Gosched()
		} else if !ready {
			time.Sleep(idleSleep)
		}
	}
}

// ResizeSource watches SIGWINCH and emits a Resize event whenever the
// observed window size actually changes. The signal handler side only
// performs a non-blocking notification (os/signal's buffered channel);
// the size ioctl runs in the source task.
type ResizeSource struct {
	lifecycle
	term       *Terminal
	lastW      int
	lastH      int
	notifyOnly chan os.Signal
}

// NewResizeSource creates a resize source for the given terminal.
func NewResizeSource(t *Terminal) *ResizeSource {
	return &ResizeSource{term: t}
}

// Start launches the source task. Starting a running source is a no-op.
func (s *ResizeSource) Start(out chan<- Event) error {
	if !s.begin() {
		return nil
	}
	s.lastW, s.lastH = s.term.Size()
	s.notifyOnly = make(chan os.Signal, 1)
	signal.Notify(s.notifyOnly, syscall.SIGWINCH)
	go s.run(out)
	return nil
}

// Stop halts the source task and removes the signal handler.
func (s *ResizeSource) Stop() {
	s.halt()
}

func (s *ResizeSource) run(out chan<- Event) {
	defer func() {
		signal.Stop(s.notifyOnly)
		s.finish()
	}()
	for {
		select {
		case <-s.stop:
			return
		case <-s.notifyOnly:
			w, h := s.term.WindowSize()
			if w == s.lastW && h == s.lastH {
				continue
			}
			oldW, oldH := s.lastW, s.lastH
			s.lastW, s.lastH = w, h
			s.term.UpdateSize()
			ev := ResizeEvent{Width: w, Height: h, OldWidth: oldW, OldHeight: oldH}
			if !s.send(out, ev) {
				return
			}
		}
	}
}

// TimerSource emits Tick events from a sleeping task. Its Missed field is
// always zero; use KernelTimerSource when expiration counting matters.
type TimerSource struct {
	lifecycle
	interval time.Duration
}

// NewTimerSource creates a sleep-based tick source.
func NewTimerSource(interval time.Duration) *TimerSource {
	return &TimerSource{interval: interval}
}

// Start launches the source task. Starting a running source is a no-op.
func (s *TimerSource) Start(out chan<- Event) error {
	if !s.begin() {
		return nil
	}
	go s.run(out)
	return nil
}

// Stop halts the source task.
func (s *TimerSource) Stop() {
	s.halt()
}

func (s *TimerSource) run(out chan<- Event) {
	defer s.finish()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	start := time.Now()
	last := start
	var frame int64
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			ev := TickEvent{
				Frame:   frame,
				Elapsed: now.Sub(start),
				Delta:   now.Sub(last),
			}
			if !s.send(out, ev) {
				return
			}
			frame++
			last = now
		}
	}
}

// KernelTimerSource emits Tick events from a repeating kernel timer
// (timerfd or EVFILT_TIMER via the Poller). Each wake carries the
// kernel's expiration count; expirations beyond the first surface as
// Missed. When the output channel is full the count folds into the next
// successful send, so no tick is dropped from the ledger.
type KernelTimerSource struct {
	lifecycle
	interval time.Duration
	poller   Poller
}

// NewKernelTimerSource creates a kernel-timer tick source.
func NewKernelTimerSource(interval time.Duration) *KernelTimerSource {
	return &KernelTimerSource{interval: interval}
}

// Start launches the source task. Starting a running source is a no-op.
func (s *KernelTimerSource) Start(out chan<- Event) error {
	if !s.begin() {
		return nil
	}
	p, err := NewPoller()
	if err != nil {
		s.finish()
		return err
	}
	if _, err := p.AddTimer(s.interval); err != nil {
		p.Close()
		s.finish()
		return err
	}
	s.poller = p
	go s.run(out)
	return nil
}

// Stop halts the source task and releases the poller.
func (s *KernelTimerSource) Stop() {
	s.halt()
}

func (s *KernelTimerSource) run(out chan<- Event) {
	defer func() {
		s.poller.Close()
		s.finish()
	}()

	start := time.Now()
	last := start
	var frame int64
	pending := 0
	for !s.stopped() {
		evs, err := s.poller.Wait(100 * time.Millisecond)
		if err != nil {
			logDebug("kernel timer wait failed", "err", err)
			return
		}
		for _, pe := range evs {
			if pe.FD != -1 {
				continue
			}
			total := pending + int(pe.Expirations)
			now := time.Now()
			ev := TickEvent{
				Frame:   frame,
				Elapsed: now.Sub(start),
				Delta:   now.Sub(last),
				Missed:  total - 1,
			}
			select {
			case out <- ev:
				pending = 0
				frame++
				last = now
			case <-s.stop:
				return
			default:
				// Channel full: carry the count forward.
				pending = total
			}
		}
	}
}
