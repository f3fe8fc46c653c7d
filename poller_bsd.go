//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package weft

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements Poller with kqueue and EVFILT_TIMER.
type kqueuePoller struct {
	kq     int
	fds    map[int]bool
	nextID int
	closed bool
}

// NewPoller creates the platform poller.
func NewPoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, ioErr("kqueue", err)
	}
	return &kqueuePoller{kq: kq, fds: make(map[int]bool)}, nil
}

func (p *kqueuePoller) RegisterFD(fd int) error {
	if p.closed {
		return ErrClosed
	}
	// EV_ADD on an existing ident updates it, so re-registration is
	// naturally idempotent.
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_ADD)
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		return ioErr("kevent", err)
	}
	p.fds[fd] = true
	return nil
}

func (p *kqueuePoller) AddTimer(interval time.Duration) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	p.nextID++
	id := p.nextID
	ev := unix.Kevent_t{}
	unix.SetKevent(&ev, id, unix.EVFILT_TIMER, unix.EV_ADD)
	ev.Data = int64(interval / time.Millisecond)
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		return 0, ioErr("kevent", err)
	}
	return id, nil
}

func (p *kqueuePoller) Wait(timeout time.Duration) ([]PollEvent, error) {
	if p.closed {
		return nil, ErrClosed
	}
	var events [16]unix.Kevent_t
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left < 0 {
			left = 0
		}
		ts := unix.NsecToTimespec(int64(left))
		n, err := unix.Kevent(p.kq, nil, events[:], &ts)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, ioErr("kevent", err)
		}
		out := make([]PollEvent, 0, n)
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.Filter == unix.EVFILT_TIMER {
				exp := uint64(ev.Data)
				if exp == 0 {
					exp = 1
				}
				out = append(out, PollEvent{FD: -1, Timer: int(ev.Ident), Expirations: exp})
			} else {
				out = append(out, PollEvent{FD: int(ev.Ident), Expirations: 1})
			}
		}
		return out, nil
	}
}

func (p *kqueuePoller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.kq)
}
