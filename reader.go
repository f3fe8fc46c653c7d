package weft

import (
	"io"
	"time"

	"golang.org/x/sys/unix"
)

// Reader wraps the input file descriptor with a small internal buffer and
// readiness polling. Every syscall retries EINTR internally; a closed
// descriptor surfaces as io.EOF, never as an error. Readiness uses
// poll(2) rather than select so descriptors above 1023 work.
type Reader struct {
	fd  int
	buf [256]byte
	r   int
	w   int
	eof bool
}

// NewReader creates a reader over the given file descriptor.
func NewReader(fd int) *Reader {
	return &Reader{fd: fd}
}

// Buffered returns the number of bytes available without a syscall.
func (r *Reader) Buffered() int {
	return r.w - r.r
}

// WaitForData blocks until input is readable or the timeout elapses.
// Returns true when bytes are available (buffered or on the fd).
func (r *Reader) WaitForData(timeout time.Duration) (bool, error) {
	if r.Buffered() > 0 {
		return true, nil
	}
	if r.eof {
		return false, io.EOF
	}
	deadline := time.Now().Add(timeout)
	for {
		ms := int(time.Until(deadline) / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
		fds := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, ioErr("poll", err)
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 && fds[0].Revents&unix.POLLIN == 0 {
			r.eof = true
			return false, io.EOF
		}
		return true, nil
	}
}

// fill reads once from the fd into the internal buffer.
func (r *Reader) fill() error {
	if r.r == r.w {
		r.r, r.w = 0, 0
	}
	if r.w == len(r.buf) {
		return nil // buffer full
	}
	for {
		n, err := unix.Read(r.fd, r.buf[r.w:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EBADF || n == 0 && err == nil {
			r.eof = true
			return io.EOF
		}
		if err != nil {
			return ioErr("read", err)
		}
		r.w += n
		return nil
	}
}

// PeekByte returns the next byte without consuming it. It never blocks:
// when the buffer is empty it attempts one non-blocking fill via a
// zero-timeout readiness check.
func (r *Reader) PeekByte() (byte, bool) {
	if r.Buffered() == 0 {
		ready, err := r.WaitForData(0)
		if !ready || err != nil {
			return 0, false
		}
		if err := r.fill(); err != nil {
			return 0, false
		}
	}
	if r.Buffered() == 0 {
		return 0, false
	}
	return r.buf[r.r], true
}

// ReadByte consumes and returns the next byte. io.EOF when the stream is
// closed, and a nil-byte with no error is never returned.
func (r *Reader) ReadByte() (byte, error) {
	if r.Buffered() == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	if r.Buffered() == 0 {
		return 0, io.EOF
	}
	b := r.buf[r.r]
	r.r++
	return b, nil
}

// ReadAvailable consumes everything currently buffered, filling once from
// the fd first if the buffer is empty; that fill is a plain read and
// blocks when no data is ready. The returned slice is valid until the
// next call.
func (r *Reader) ReadAvailable() ([]byte, error) {
	if r.Buffered() == 0 {
		if r.eof {
			return nil, io.EOF
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
	p := r.buf[r.r:r.w]
	r.r = r.w
	return p, nil
}
