package weft

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller on Linux with epoll and timerfd.
type epollPoller struct {
	epfd   int
	fds    map[int]bool
	timers map[int]int // timerfd -> timer id
	nextID int
	closed bool
}

// NewPoller creates the platform poller.
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ioErr("epoll_create1", err)
	}
	return &epollPoller{
		epfd:   epfd,
		fds:    make(map[int]bool),
		timers: make(map[int]int),
	}, nil
}

func (p *epollPoller) RegisterFD(fd int) error {
	if p.closed {
		return ErrClosed
	}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if p.fds[fd] {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(p.epfd, op, fd, ev); err != nil {
		return ioErr("epoll_ctl", err)
	}
	p.fds[fd] = true
	return nil
}

func (p *epollPoller) AddTimer(interval time.Duration) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return 0, ioErr("timerfd_create", err)
	}
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(int64(interval)),
		Value:    unix.NsecToTimespec(int64(interval)),
	}
	if err := unix.TimerfdSettime(tfd, 0, &spec, nil); err != nil {
		unix.Close(tfd)
		return 0, ioErr("timerfd_settime", err)
	}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(tfd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, tfd, ev); err != nil {
		unix.Close(tfd)
		return 0, ioErr("epoll_ctl", err)
	}
	p.nextID++
	p.timers[tfd] = p.nextID
	return p.nextID, nil
}

func (p *epollPoller) Wait(timeout time.Duration) ([]PollEvent, error) {
	if p.closed {
		return nil, ErrClosed
	}
	var events [16]unix.EpollEvent
	deadline := time.Now().Add(timeout)
	for {
		ms := int(time.Until(deadline) / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		n, err := unix.EpollWait(p.epfd, events[:], ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, ioErr("epoll_wait", err)
		}
		out := make([]PollEvent, 0, n)
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if id, isTimer := p.timers[fd]; isTimer {
				var buf [8]byte
				exp := uint64(1)
				if rn, rerr := unix.Read(fd, buf[:]); rerr == nil && rn == 8 {
					exp = binary.LittleEndian.Uint64(buf[:])
				}
				out = append(out, PollEvent{FD: -1, Timer: id, Expirations: exp})
			} else {
				out = append(out, PollEvent{FD: fd, Expirations: 1})
			}
		}
		return out, nil
	}
}

func (p *epollPoller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	for tfd := range p.timers {
		unix.Close(tfd)
	}
	return unix.Close(p.epfd)
}
