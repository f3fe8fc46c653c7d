package weft

import "time"

// Event is one item in the terminal's input stream: a key press, a mouse
// action, a resize, a timer tick or a mode change. The set of variants is
// closed; consumers switch exhaustively on the concrete types.
type Event interface {
	isEvent()
}

// KeyEvent reports one decoded key press.
type KeyEvent struct {
	Key  Key
	Rune rune // set when Key is KeyRune
	Mod  Modifiers
}

// MouseEvent reports one decoded mouse action. Coordinates are 1-based,
// as reported by the terminal.
type MouseEvent struct {
	X, Y    int
	Button  MouseButton
	Mod     Modifiers
	Motion  bool
	Pressed bool
}

// ResizeEvent reports a window size change. Old dimensions are zero when
// unknown.
type ResizeEvent struct {
	Width, Height       int
	OldWidth, OldHeight int
}

// TickEvent reports one timer expiration.
type TickEvent struct {
	Frame   int64         // tick index since the source started
	Elapsed time.Duration // since the source started
	Delta   time.Duration // since the previous tick
	Missed  int           // expirations coalesced into this event
}

// ModeChangeEvent reports a terminal mode transition. Previous is the
// mode strictly before the change.
type ModeChangeEvent struct {
	Mode     TerminalMode
	Previous TerminalMode
}

func (KeyEvent) isEvent()        {}
func (MouseEvent) isEvent()      {}
func (ResizeEvent) isEvent()     {}
func (TickEvent) isEvent()       {}
func (ModeChangeEvent) isEvent() {}
