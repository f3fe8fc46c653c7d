package weft

import (
	"time"
	"unicode/utf8"
)

const (
	// escapeTimeout is how long a lone ESC may wait for a continuation
	// byte before being delivered as the Escape key.
	escapeTimeout = 50 * time.Millisecond

	// maxSequenceLen bounds how many bytes an unterminated sequence may
	// accumulate before being discarded.
	maxSequenceLen = 64
)

// Parser decodes a terminal input byte stream into key and mouse events.
// Bytes arrive via Feed; decoded events are drained via Next. A sequence
// that stays incomplete past escapeTimeout is resolved by Expire, so the
// parser never waits on bytes that may not arrive.
type Parser struct {
	buf      []byte
	events   []Event
	lastFeed time.Time
}

// NewParser creates an input parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends input bytes and decodes as many events as possible.
func (p *Parser) Feed(b []byte) {
	p.buf = append(p.buf, b...)
	p.lastFeed = time.Now()
	p.scan()
}

// Next pops the next decoded event.
func (p *Parser) Next() (Event, bool) {
	if len(p.events) == 0 {
		return nil, false
	}
	ev := p.events[0]
	p.events = p.events[1:]
	return ev, true
}

// Pending reports whether an incomplete sequence is buffered.
func (p *Parser) Pending() bool {
	return len(p.buf) > 0
}

// PendingSince returns when bytes were last fed to the parser.
func (p *Parser) PendingSince() time.Time {
	return p.lastFeed
}

// Expire resolves a sequence that has waited past the escape timeout:
// a lone ESC becomes the Escape key; anything else is discarded as one
// unrecognised key.
func (p *Parser) Expire() {
	if len(p.buf) == 0 {
		return
	}
	if len(p.buf) == 1 && p.buf[0] == 0x1b {
		p.events = append(p.events, KeyEvent{Key: KeyEscape})
	} else {
		logDebug("discarding unrecognised input sequence", "len", len(p.buf))
		p.events = append(p.events, KeyEvent{Key: KeyUnknown})
	}
	p.buf = p.buf[:0]
}

func (p *Parser) emit(ev Event) {
	p.events = append(p.events, ev)
}

// scan decodes events off the front of the buffer until it empties or an
// incomplete sequence remains.
func (p *Parser) scan() {
	for len(p.buf) > 0 {
		n, ev, complete := parseOne(p.buf)
		if !complete {
			if len(p.buf) > maxSequenceLen {
				logDebug("input sequence exceeded length bound", "len", len(p.buf))
				p.emit(KeyEvent{Key: KeyUnknown})
				p.buf = p.buf[:0]
				continue
			}
			return
		}
		if ev != nil {
			p.emit(ev)
		}
		p.buf = p.buf[n:]
	}
}

// parseOne decodes a single event from the head of b. It returns the
// bytes consumed and whether the head forms a complete unit; when
// complete is false the caller waits for more input or a timeout. A nil
// event with complete=true means the bytes are consumed silently.
func parseOne(b []byte) (n int, ev Event, complete bool) {
	c := b[0]
	switch {
	case c == 0x1b:
		return parseEscape(b)

	case c == 0x09:
		return 1, KeyEvent{Key: KeyTab}, true
	case c == 0x0a || c == 0x0d:
		return 1, KeyEvent{Key: KeyEnter}, true
	case c == 0x7f || c == 0x08:
		return 1, KeyEvent{Key: KeyBackspace}, true
	case c == 0x00:
		return 1, KeyEvent{Key: KeyRune, Rune: ' ', Mod: ModCtrl}, true
	case c < 0x1b:
		// ^A..^Z, minus the Backspace/Tab/Enter special cases above.
		return 1, KeyEvent{Key: KeyRune, Rune: rune('a' + c - 1), Mod: ModCtrl}, true
	case c < 0x20:
		// ^\ ^] ^^ ^_
		return 1, KeyEvent{Key: KeyRune, Rune: rune(c | 0x40), Mod: ModCtrl}, true

	case c < 0x80:
		return 1, KeyEvent{Key: KeyRune, Rune: rune(c)}, true

	default:
		if !utf8.FullRune(b) {
			if len(b) >= utf8.UTFMax {
				return 1, nil, true // invalid lead byte, drop it
			}
			return 0, nil, false
		}
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			return 1, nil, true
		}
		return size, KeyEvent{Key: KeyRune, Rune: r}, true
	}
}

// parseEscape decodes sequences introduced by ESC.
func parseEscape(b []byte) (int, Event, bool) {
	if len(b) == 1 {
		return 0, nil, false // wait for continuation or timeout
	}
	switch b[1] {
	case '[':
		return parseCSI(b)
	case 'O':
		return parseSS3(b)
	case 0x1b:
		// ESC ESC: deliver the first, reconsider the second.
		return 1, KeyEvent{Key: KeyEscape}, true
	default:
		if b[1] >= 0x20 && b[1] < 0x7f {
			return 2, KeyEvent{Key: KeyRune, Rune: rune(b[1]), Mod: ModAlt}, true
		}
		// ESC followed by a control byte: deliver Escape, reconsider.
		return 1, KeyEvent{Key: KeyEscape}, true
	}
}

// parseSS3 decodes ESC O sequences (application keypad, F1-F4).
func parseSS3(b []byte) (int, Event, bool) {
	if len(b) < 3 {
		return 0, nil, false
	}
	key := KeyUnknown
	switch b[2] {
	case 'P':
		key = KeyF1
	case 'Q':
		key = KeyF2
	case 'R':
		key = KeyF3
	case 'S':
		key = KeyF4
	case 'A':
		key = KeyUp
	case 'B':
		key = KeyDown
	case 'C':
		key = KeyRight
	case 'D':
		key = KeyLeft
	case 'H':
		key = KeyHome
	case 'F':
		key = KeyEnd
	}
	return 3, KeyEvent{Key: key}, true
}

// parseCSI decodes ESC [ sequences: cursor keys, function keys, kitty
// keyboard reports, and SGR or X10 mouse reports.
func parseCSI(b []byte) (int, Event, bool) {
	i := 2
	sgrMouse := false
	private := byte(0)
	if i < len(b) {
		switch b[i] {
		case '<':
			sgrMouse = true
			i++
		case '?', '>', '=':
			private = b[i]
			i++
		}
	}

	// Semicolon-separated numeric parameters.
	var params []int
	cur, haveCur := 0, false
	for i < len(b) {
		c := b[i]
		if c >= '0' && c <= '9' {
			cur = cur*10 + int(c-'0')
			haveCur = true
			i++
			continue
		}
		if c == ';' || c == ':' {
			params = append(params, cur)
			cur, haveCur = 0, false
			i++
			continue
		}
		break
	}
	if haveCur || len(params) > 0 {
		params = append(params, cur)
	}

	// Intermediate bytes.
	for i < len(b) && b[i] >= 0x20 && b[i] <= 0x2f {
		i++
	}
	if i >= len(b) {
		return 0, nil, false
	}
	final := b[i]
	if final < 0x40 || final > 0x7e {
		// Not a valid final byte; swallow the malformed sequence.
		logDebug("malformed CSI sequence", "final", final)
		return i + 1, nil, true
	}
	n := i + 1

	param := func(idx, def int) int {
		if idx < len(params) && params[idx] != 0 {
			return params[idx]
		}
		return def
	}

	// xterm encodes modifiers as 1+bitset in the second parameter.
	mods := Modifiers(0)
	if len(params) >= 2 && params[1] > 0 {
		mods = Modifiers(params[1] - 1)
	}

	if sgrMouse && (final == 'M' || final == 'm') {
		return n, decodeSGRMouse(params, final == 'M'), true
	}
	if final == 'M' && !sgrMouse && len(params) == 0 && private == 0 {
		// X10 mouse: three payload bytes follow the final.
		if len(b) < n+3 {
			return 0, nil, false
		}
		return n + 3, decodeX10Mouse(b[n], b[n+1], b[n+2]), true
	}

	switch final {
	case 'A':
		return n, KeyEvent{Key: KeyUp, Mod: mods}, true
	case 'B':
		return n, KeyEvent{Key: KeyDown, Mod: mods}, true
	case 'C':
		return n, KeyEvent{Key: KeyRight, Mod: mods}, true
	case 'D':
		return n, KeyEvent{Key: KeyLeft, Mod: mods}, true
	case 'H':
		return n, KeyEvent{Key: KeyHome, Mod: mods}, true
	case 'F':
		return n, KeyEvent{Key: KeyEnd, Mod: mods}, true
	case 'Z':
		return n, KeyEvent{Key: KeyBackTab, Mod: mods | ModShift}, true
	case '~':
		key := KeyUnknown
		switch param(0, 0) {
		case 1, 7:
			key = KeyHome
		case 2:
			key = KeyInsert
		case 3:
			key = KeyDelete
		case 4, 8:
			key = KeyEnd
		case 5:
			key = KeyPageUp
		case 6:
			key = KeyPageDown
		case 15:
			key = KeyF5
		case 17:
			key = KeyF6
		case 18:
			key = KeyF7
		case 19:
			key = KeyF8
		case 20:
			key = KeyF9
		case 21:
			key = KeyF10
		case 23:
			key = KeyF11
		case 24:
			key = KeyF12
		}
		return n, KeyEvent{Key: key, Mod: mods}, true
	case 'u':
		return n, decodeKittyKey(params), true
	}

	logDebug("unhandled CSI sequence", "final", string(rune(final)), "params", params)
	return n, nil, true
}

// decodeKittyKey decodes a kitty keyboard protocol report:
// keycode ; modifiers ; event-type.
func decodeKittyKey(params []int) Event {
	if len(params) == 0 {
		return nil
	}
	code := params[0]
	mods := Modifiers(0)
	if len(params) >= 2 && params[1] > 0 {
		mods = Modifiers(params[1] - 1)
	}
	if len(params) >= 3 && params[2] == 3 {
		// Key release; this stream reports presses and repeats only.
		return nil
	}
	switch code {
	case 9:
		return KeyEvent{Key: KeyTab, Mod: mods}
	case 13:
		return KeyEvent{Key: KeyEnter, Mod: mods}
	case 27:
		return KeyEvent{Key: KeyEscape, Mod: mods}
	case 127:
		return KeyEvent{Key: KeyBackspace, Mod: mods}
	}
	return KeyEvent{Key: KeyRune, Rune: rune(code), Mod: mods}
}

// decodeMouseButton translates the shared button bit layout used by both
// mouse protocols.
func decodeMouseButton(btn int) (MouseButton, Modifiers, bool) {
	mods := Modifiers(0)
	if btn&4 != 0 {
		mods |= ModShift
	}
	if btn&8 != 0 {
		mods |= ModAlt
	}
	if btn&16 != 0 {
		mods |= ModCtrl
	}
	motion := btn&32 != 0

	var button MouseButton
	if btn&64 != 0 {
		if btn&1 == 0 {
			button = MouseWheelUp
		} else {
			button = MouseWheelDown
		}
	} else {
		switch btn & 3 {
		case 0:
			button = MouseLeft
		case 1:
			button = MouseMiddle
		case 2:
			button = MouseRight
		case 3:
			button = MouseNone // X10 release
		}
	}
	return button, mods, motion
}

// decodeSGRMouse decodes an SGR (1006) mouse report: button ; x ; y.
func decodeSGRMouse(params []int, press bool) Event {
	if len(params) < 3 {
		return nil
	}
	button, mods, motion := decodeMouseButton(params[0])
	return MouseEvent{
		X:       params[1],
		Y:       params[2],
		Button:  button,
		Mod:     mods,
		Motion:  motion,
		Pressed: press,
	}
}

// decodeX10Mouse decodes the legacy three-byte report; every byte is
// offset by 32 and coordinates are clamped to be at least 1.
func decodeX10Mouse(bb, bx, by byte) Event {
	btn := int(bb) - 32
	x := int(bx) - 32
	y := int(by) - 32
	if x < 1 {
		x = 1
	}
	if y < 1 {
		y = 1
	}
	button, mods, motion := decodeMouseButton(btn)
	pressed := btn&3 != 3
	return MouseEvent{
		X:       x,
		Y:       y,
		Button:  button,
		Mod:     mods,
		Motion:  motion,
		Pressed: pressed,
	}
}
