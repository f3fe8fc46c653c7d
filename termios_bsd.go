//go:build freebsd || netbsd || openbsd || dragonfly

package weft

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA
)
