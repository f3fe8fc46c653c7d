package weft

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// terminalActive guards the controlling tty: one Terminal per process.
var terminalActive atomic.Bool

// Option configures a Terminal.
type Option func(*options)

type options struct {
	term     string
	terminfo []byte
	mouse    bool
	kitty    bool
	modOther bool
	hideCur  bool
}

// WithTerm overrides the terminal type name normally taken from $TERM.
func WithTerm(name string) Option {
	return func(o *options) { o.term = name }
}

// WithTerminfo supplies a compiled terminfo entry. Locating the file on
// disk is the caller's concern; the bytes are decoded here, with the
// built-in table as fallback on parse errors.
func WithTerminfo(data []byte) Option {
	return func(o *options) { o.terminfo = data }
}

// WithMouse enables SGR mouse tracking at init.
func WithMouse() Option {
	return func(o *options) { o.mouse = true }
}

// WithKittyKeyboard enables the kitty keyboard protocol at init.
func WithKittyKeyboard() Option {
	return func(o *options) { o.kitty = true }
}

// WithModifyOtherKeys enables xterm's modifyOtherKeys mode at init.
func WithModifyOtherKeys() Option {
	return func(o *options) { o.modOther = true }
}

// WithHiddenCursor starts with the cursor hidden.
func WithHiddenCursor() Option {
	return func(o *options) { o.hideCur = true }
}

// Terminal owns the controlling tty: raw/cooked transitions, the cell
// buffer, the render state, size queries and the restoration contract.
// At most one Terminal is active per process.
type Terminal struct {
	in    *os.File
	out   *os.File
	inFD  int
	outFD int
	owned bool // in/out came from opening /dev/tty ourselves

	caps   *CapabilitySet
	buffer *Buffer
	rstate *RenderState

	mu          sync.Mutex
	width       int
	height      int
	mode        TerminalMode
	cursor      Cursor
	shownCursor Cursor // last emitted cursor state
	origTermios *unix.Termios
	opts        options
	closed      atomic.Bool
	notify      func(Event)
}

// NewTerminal opens the controlling terminal, snapshots its state, enters
// raw mode and the alternate screen, and hands back a ready Terminal.
// Construction fails with ErrNotATty when no tty is reachable and with
// ErrTerminalActive when another instance owns the tty.
func NewTerminal(opts ...Option) (*Terminal, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if !terminalActive.CompareAndSwap(false, true) {
		return nil, ErrTerminalActive
	}

	t := &Terminal{opts: o, cursor: DefaultCursor()}
	if o.hideCur {
		t.cursor.Visible = false
	}
	t.shownCursor = Cursor{X: -1, Y: -1, Visible: true}

	if err := t.openTTY(); err != nil {
		terminalActive.Store(false)
		return nil, err
	}

	t.caps = LoadCapabilities(o.term, o.terminfo)

	if err := t.initModes(); err != nil {
		t.releaseTTY()
		terminalActive.Store(false)
		return nil, err
	}
	return t, nil
}

// openTTY wires input and output to stdin/stdout when both are terminals,
// and to /dev/tty otherwise.
func (t *Terminal) openTTY() error {
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		t.in = os.Stdin
		t.out = os.Stdout
	} else {
		tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			return ErrNotATty
		}
		t.in = tty
		t.out = tty
		t.owned = true
	}
	t.inFD = int(t.in.Fd())
	t.outFD = int(t.out.Fd())
	return nil
}

func (t *Terminal) releaseTTY() {
	if t.owned {
		t.in.Close()
	}
}

// initModes snapshots termios, applies the raw preset, sizes the buffer
// and emits the init sequences. Any failure unwinds what was done.
func (t *Terminal) initModes() (err error) {
	tio, err := ioctlGetTermiosRetry(t.inFD)
	if err != nil {
		return ioErr("tcgetattr", err)
	}
	t.origTermios = tio

	defer func() {
		if r := recover(); r != nil {
			t.restoreTerminal()
			panic(r)
		}
		if err != nil {
			t.restoreTerminal()
		}
	}()

	raw := applyMode(tio, ModeRaw)
	if err = ioctlSetTermiosRetry(t.inFD, &raw); err != nil {
		return ioErr("tcsetattr", err)
	}
	t.mode = ModeRaw

	t.width, t.height = t.queryWindowSize()
	t.buffer = NewBuffer(t.width, t.height)
	t.rstate = NewRenderState(t.caps)

	var init bytes.Buffer
	if smcup, ok := t.caps.String("smcup"); ok {
		init.WriteString(smcup)
		t.mode = t.mode.With(ModeAltScreen)
	}
	init.WriteString(t.caps.Eval("clear"))
	if !t.cursor.Visible {
		init.WriteString(t.caps.Eval("civis"))
		t.shownCursor.Visible = false
	}
	if t.opts.mouse {
		init.WriteString("\x1b[?1000h\x1b[?1006h")
	}
	if t.opts.kitty {
		init.WriteString("\x1b[>1u")
	}
	if t.opts.modOther {
		init.WriteString("\x1b[>4;2m")
	}
	if err = t.write(init.Bytes()); err != nil {
		return err
	}
	return nil
}

// Close restores the terminal and releases it. Safe to call more than
// once and from deferred cleanup paths, signal handlers' callbacks
// included.
func (t *Terminal) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := t.restoreTerminal()
	t.releaseTTY()
	terminalActive.Store(false)
	return err
}

// restoreTerminal undoes every mode the terminal may be in, in strict
// order: mouse off, enhanced keyboard off, any open synchronized update
// ended, alternate screen left, termios restored, cursor shown.
func (t *Terminal) restoreTerminal() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out bytes.Buffer
	if t.opts.mouse {
		out.WriteString("\x1b[?1006l\x1b[?1000l")
	}
	if t.opts.kitty {
		out.WriteString("\x1b[<u")
	}
	if t.opts.modOther {
		out.WriteString("\x1b[>4;0m")
	}
	out.WriteString("\x1b[?2026l") // end any open synchronized update
	out.WriteString("\x1b[0m")
	if t.mode.Has(ModeAltScreen) {
		out.WriteString(t.caps.Eval("rmcup"))
		t.mode = t.mode.Without(ModeAltScreen)
	}
	werr := t.write(out.Bytes())

	var terr error
	if t.origTermios != nil {
		if err := ioctlSetTermiosRetry(t.inFD, t.origTermios); err != nil {
			terr = ioErr("tcsetattr", err)
		}
	}

	// Cursor visibility last, after termios is sane again.
	if cnorm, ok := t.caps.String("cnorm"); ok {
		t.write([]byte(cnorm))
	}

	if werr != nil {
		return werr
	}
	return terr
}

// SetEventSink installs a callback that receives the ModeChange events
// produced by the terminal itself. Loop.Attach uses this; applications
// normally never call it directly.
func (t *Terminal) SetEventSink(fn func(Event)) {
	t.mu.Lock()
	t.notify = fn
	t.mu.Unlock()
}

func (t *Terminal) emit(ev Event) {
	t.mu.Lock()
	fn := t.notify
	t.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// Capabilities returns the terminal's capability set.
func (t *Terminal) Capabilities() *CapabilitySet {
	return t.caps
}

// Buffer returns the drawing buffer.
func (t *Terminal) Buffer() *Buffer {
	return t.buffer
}

// InputFD returns the file descriptor the Reader should consume.
func (t *Terminal) InputFD() int {
	return t.inFD
}

// Size returns the last observed dimensions.
func (t *Terminal) Size() (width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width, t.height
}

// queryWindowSize asks the kernel for the window size, falling back to
// the capability numerics and finally to 80x24.
func (t *Terminal) queryWindowSize() (int, int) {
	for {
		ws, err := unix.IoctlGetWinsize(t.outFD, unix.TIOCGWINSZ)
		if err == unix.EINTR {
			continue
		}
		if err == nil && ws.Col > 0 && ws.Row > 0 {
			return int(ws.Col), int(ws.Row)
		}
		break
	}
	cols := t.caps.Number("cols")
	lines := t.caps.Number("lines")
	if cols > 0 && lines > 0 {
		return cols, lines
	}
	return 80, 24
}

// WindowSize queries the current window size without touching the buffer.
func (t *Terminal) WindowSize() (int, int) {
	return t.queryWindowSize()
}

// UpdateSize re-queries the window size. When it changed, the buffer is
// replaced (buffer dimensions are immutable) and true is returned. Resize
// events are the resize source's concern.
func (t *Terminal) UpdateSize() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, h := t.queryWindowSize()
	if w == t.width && h == t.height {
		return false
	}
	t.width, t.height = w, h
	t.buffer = NewBuffer(w, h)
	t.rstate.Invalidate()
	return true
}

// SetCursor moves the logical cursor.
func (t *Terminal) SetCursor(x, y int) {
	t.mu.Lock()
	t.cursor.X, t.cursor.Y = x, y
	t.mu.Unlock()
}

// ShowCursor makes the cursor visible.
func (t *Terminal) ShowCursor() {
	t.mu.Lock()
	t.cursor.Visible = true
	t.mu.Unlock()
}

// HideCursor hides the cursor.
func (t *Terminal) HideCursor() {
	t.mu.Lock()
	t.cursor.Visible = false
	t.mu.Unlock()
}

// SetCursorShape changes the cursor shape (DECSCUSR).
func (t *Terminal) SetCursorShape(shape CursorShape) {
	t.mu.Lock()
	t.cursor.Shape = shape
	t.mu.Unlock()
}

// Render flushes pending buffer changes to the terminal, then settles the
// cursor at its logical position and applies visibility and shape changes.
func (t *Terminal) Render() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return ErrClosed
	}

	if err := t.buffer.RenderTo(t.out, t.rstate); err != nil {
		return err
	}

	var tail bytes.Buffer
	cur := t.cursor.clamp(t.width, t.height)
	if cur.X != t.shownCursor.X || cur.Y != t.shownCursor.Y || !t.rstate.posValid {
		t.rstate.MoveTo(&tail, cur.X, cur.Y)
	}
	if cur.Visible != t.shownCursor.Visible {
		if cur.Visible {
			tail.WriteString(t.caps.Eval("cnorm"))
		} else {
			tail.WriteString(t.caps.Eval("civis"))
		}
	}
	if cur.Shape != t.shownCursor.Shape {
		tail.WriteString("\x1b[")
		appendIntBuf(&tail, int(cur.Shape))
		tail.WriteString(" q")
	}
	t.shownCursor = cur
	if tail.Len() > 0 {
		return t.write(tail.Bytes())
	}
	return nil
}

// Sync forces a full repaint of the screen.
func (t *Terminal) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return ErrClosed
	}
	return t.buffer.SyncTo(t.out, t.rstate)
}

// Bell rings the terminal bell.
func (t *Terminal) Bell() error {
	return t.write([]byte(t.caps.Eval("bel")))
}

// WithMode runs fn with the terminal switched to a different mode,
// restoring the previous mode afterwards even when fn fails or panics.
// Unless preserveScreen is set, the alternate screen is left for the
// duration and the render state invalidated on both edges. One
// ModeChange event is emitted per transition, with Previous always the
// strictly prior mode.
func (t *Terminal) WithMode(mode TerminalMode, preserveScreen bool, fn func() error) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.mu.Lock()
	prev := t.mode
	altWasActive := prev.Has(ModeAltScreen)

	var enter bytes.Buffer
	if !preserveScreen && altWasActive {
		enter.WriteString(t.caps.Eval("rmcup"))
		t.rstate.Invalidate()
	}
	tio := applyMode(t.origTermios, mode)
	if err := ioctlSetTermiosRetry(t.inFD, &tio); err != nil {
		t.mu.Unlock()
		return ioErr("tcsetattr", err)
	}
	newMode := mode
	if preserveScreen && altWasActive {
		newMode = newMode.With(ModeAltScreen)
	}
	t.mode = newMode
	if enter.Len() > 0 {
		t.write(enter.Bytes())
	}
	t.mu.Unlock()

	t.emit(ModeChangeEvent{Mode: newMode, Previous: prev})

	defer func() {
		t.mu.Lock()
		var leave bytes.Buffer
		if !preserveScreen && altWasActive {
			leave.WriteString(t.caps.Eval("smcup"))
			leave.WriteString(t.caps.Eval("clear"))
		}
		restored := applyMode(t.origTermios, prev.Without(ModeAltScreen))
		if err := ioctlSetTermiosRetry(t.inFD, &restored); err != nil {
			logDebug("mode restore failed", "err", err)
		}
		inner := t.mode
		t.mode = prev
		t.rstate.Invalidate()
		if leave.Len() > 0 {
			t.write(leave.Bytes())
		}
		t.mu.Unlock()

		t.emit(ModeChangeEvent{Mode: prev, Previous: inner})
	}()

	return fn()
}

// Suspend restores cooked mode and the primary screen, runs fn (typically
// a shelled-out program), and puts the terminal back the way it was.
func (t *Terminal) Suspend(fn func() error) error {
	return t.WithMode(ModeCooked, false, fn)
}

// Mode returns the current terminal mode.
func (t *Terminal) Mode() TerminalMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// write pushes bytes at the terminal, retrying short writes.
func (t *Terminal) write(p []byte) error {
	for len(p) > 0 {
		n, err := t.out.Write(p)
		if err != nil {
			return ioErr("write", err)
		}
		p = p[n:]
	}
	return nil
}

// WriteString writes a raw escape string to the terminal, bypassing the
// buffer. Useful for capabilities this package does not model.
func (t *Terminal) WriteString(s string) error {
	if t.closed.Load() {
		return ErrClosed
	}
	return t.write([]byte(s))
}

// ioctlGetTermiosRetry wraps the termios read ioctl with EINTR retry.
func ioctlGetTermiosRetry(fd int) (*unix.Termios, error) {
	for {
		tio, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get termios: %w", err)
		}
		return tio, nil
	}
}

// ioctlSetTermiosRetry wraps the termios write ioctl with EINTR retry.
func ioctlSetTermiosRetry(fd int, tio *unix.Termios) error {
	for {
		err := unix.IoctlSetTermios(fd, ioctlSetTermios, tio)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("set termios: %w", err)
		}
		return nil
	}
}
