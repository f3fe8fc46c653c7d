package weft

import (
	"time"

	"golang.org/x/sys/unix"
)

// fallbackPoller implements Poller with plain poll(2) and monotonic-clock
// deadline tracking for timers. It compiles everywhere and backs
// NewPoller on platforms without epoll or kqueue.
type fallbackPoller struct {
	fds    []int
	timers []fallbackTimer
	nextID int
	closed bool
}

type fallbackTimer struct {
	id       int
	interval time.Duration
	next     time.Time
}

// NewFallbackPoller creates the portable poll-based poller.
func NewFallbackPoller() (Poller, error) {
	return &fallbackPoller{}, nil
}

func (p *fallbackPoller) RegisterFD(fd int) error {
	if p.closed {
		return ErrClosed
	}
	for _, f := range p.fds {
		if f == fd {
			return nil
		}
	}
	p.fds = append(p.fds, fd)
	return nil
}

func (p *fallbackPoller) AddTimer(interval time.Duration) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	p.nextID++
	p.timers = append(p.timers, fallbackTimer{
		id:       p.nextID,
		interval: interval,
		next:     time.Now().Add(interval),
	})
	return p.nextID, nil
}

func (p *fallbackPoller) Wait(timeout time.Duration) ([]PollEvent, error) {
	if p.closed {
		return nil, ErrClosed
	}

	// The caller's timeout caps the sleep; a nearer timer shortens it.
	deadline := time.Now().Add(timeout)
	wake := deadline
	for _, t := range p.timers {
		if t.next.Before(wake) {
			wake = t.next
		}
	}

	pollFDs := make([]unix.PollFd, len(p.fds))
	for i, fd := range p.fds {
		pollFDs[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}

	for {
		// Round up so the sleep reaches the wake time instead of ending
		// just short of a timer that is about to fall due.
		ms := int((time.Until(wake) + time.Millisecond - 1) / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		n, err := unix.Poll(pollFDs, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, ioErr("poll", err)
		}

		var out []PollEvent
		now := time.Now()
		for i := range p.timers {
			t := &p.timers[i]
			if now.Before(t.next) {
				continue
			}
			// Coalesce every interval that elapsed into one event.
			late := now.Sub(t.next)
			exp := uint64(1 + late/t.interval)
			t.next = t.next.Add(time.Duration(exp) * t.interval)
			out = append(out, PollEvent{FD: -1, Timer: t.id, Expirations: exp})
		}
		if n > 0 {
			for _, pf := range pollFDs {
				if pf.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
					out = append(out, PollEvent{FD: int(pf.Fd), Expirations: 1})
				}
			}
		}
		if n == 0 && len(out) == 0 && now.Before(wake) {
			continue // woke early; nothing is due yet
		}
		return out, nil
	}
}

func (p *fallbackPoller) Close() error {
	p.closed = true
	return nil
}
