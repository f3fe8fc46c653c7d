package weft

import "golang.org/x/sys/unix"

// TerminalMode is a bitset describing how the terminal processes input
// and output. The zero value is cooked mode: line buffering, echo and
// signal generation all on.
type TerminalMode uint8

const (
	// ModeCharBuffered delivers input byte-at-a-time instead of
	// line-at-a-time (canonical processing off).
	ModeCharBuffered TerminalMode = 1 << iota
	// ModeNoEcho suppresses local echo of typed characters.
	ModeNoEcho
	// ModeNoSignals stops ^C/^Z/^\ from generating signals; the bytes
	// arrive as ordinary input.
	ModeNoSignals
	// ModeNoProcessing disables input and output transformation
	// (flow control, CR/NL mapping, output post-processing).
	ModeNoProcessing
	// ModeAltScreen marks the alternate screen as active.
	ModeAltScreen
)

// Named mode presets.
const (
	ModeCooked   TerminalMode = 0
	ModeRaw                   = ModeCharBuffered | ModeNoEcho | ModeNoSignals | ModeNoProcessing
	ModeCbreak                = ModeCharBuffered | ModeNoEcho
	ModePassword              = ModeNoEcho
	ModeSemiRaw               = ModeCharBuffered | ModeNoEcho | ModeNoProcessing
)

// Has returns true if the mode contains all the given flags.
func (m TerminalMode) Has(flags TerminalMode) bool {
	return m&flags == flags
}

// With returns a new mode with the given flags added.
func (m TerminalMode) With(flags TerminalMode) TerminalMode {
	return m | flags
}

// Without returns a new mode with the given flags removed.
func (m TerminalMode) Without(flags TerminalMode) TerminalMode {
	return m &^ flags
}

// applyMode derives a termios from the saved original for the given mode
// flags. Starting from the snapshot keeps settings we do not model.
func applyMode(orig *unix.Termios, mode TerminalMode) unix.Termios {
	tio := *orig

	if mode.Has(ModeCharBuffered) {
		tio.Lflag &^= unix.ICANON | unix.IEXTEN
		tio.Cc[unix.VMIN] = 1
		tio.Cc[unix.VTIME] = 0
	}
	if mode.Has(ModeNoEcho) {
		tio.Lflag &^= unix.ECHO | unix.ECHONL
	}
	if mode.Has(ModeNoSignals) {
		tio.Lflag &^= unix.ISIG
		tio.Iflag &^= unix.BRKINT
	}
	if mode.Has(ModeNoProcessing) {
		tio.Iflag &^= unix.ICRNL | unix.INPCK | unix.ISTRIP | unix.IXON
		tio.Oflag &^= unix.OPOST
		tio.Cflag |= unix.CS8
	}
	return tio
}
