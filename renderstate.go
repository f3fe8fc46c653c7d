package weft

import "bytes"

// RenderState caches the last-emitted foreground, background, attributes
// and cursor position so the diff renderer can elide redundant style and
// movement sequences. It is invalidated on alternate-screen toggles, on
// mode changes that do not preserve the screen, and at the end of every
// synchronized-update block.
type RenderState struct {
	caps *CapabilitySet

	fg, bg     Color
	attr       Attribute
	styleValid bool

	x, y     int
	posValid bool

	out bytes.Buffer // frame assembly buffer, reused across frames
}

// NewRenderState creates a render state bound to a capability set.
func NewRenderState(caps *CapabilitySet) *RenderState {
	return &RenderState{caps: caps}
}

// Invalidate forgets all cached state without emitting anything. The next
// setter emits unconditionally.
func (rs *RenderState) Invalidate() {
	rs.styleValid = false
	rs.posValid = false
}

// Reset emits a full attribute reset and invalidates the cache.
func (rs *RenderState) Reset(buf *bytes.Buffer) {
	buf.WriteString("\x1b[0m")
	rs.Invalidate()
}

// SetStyle emits the minimal SGR transition from the cached style to the
// given one. Removing an attribute forces a full reset followed by
// re-application of the remaining style; purely additive changes emit
// only the deltas.
func (rs *RenderState) SetStyle(buf *bytes.Buffer, style Style) {
	if rs.styleValid && style.FG == rs.fg && style.BG == rs.bg && style.Attr == rs.attr {
		return
	}

	full := !rs.styleValid || rs.attr&^style.Attr != 0
	buf.WriteString("\x1b[")
	if full {
		buf.WriteByte('0')
		writeAttrs(buf, style.Attr)
		writeColor(buf, style.FG, true)
		writeColor(buf, style.BG, false)
	} else {
		first := true
		sep := func() {
			if !first {
				buf.WriteByte(';')
			}
			first = false
		}
		added := style.Attr &^ rs.attr
		for _, ac := range attrCodes {
			if added.Has(ac.attr) {
				sep()
				buf.WriteString(ac.code)
			}
		}
		if style.FG != rs.fg {
			sep()
			writeColorBare(buf, style.FG, true)
		}
		if style.BG != rs.bg {
			sep()
			writeColorBare(buf, style.BG, false)
		}
	}
	buf.WriteByte('m')

	rs.fg = style.FG
	rs.bg = style.BG
	rs.attr = style.Attr
	rs.styleValid = true
}

var attrCodes = []struct {
	attr Attribute
	code string
}{
	{AttrBold, "1"},
	{AttrDim, "2"},
	{AttrItalic, "3"},
	{AttrUnderline, "4"},
	{AttrBlink, "5"},
	{AttrReverse, "7"},
	{AttrHidden, "8"},
	{AttrStrikethrough, "9"},
}

// writeAttrs appends ";<code>" for each set attribute.
func writeAttrs(buf *bytes.Buffer, a Attribute) {
	for _, ac := range attrCodes {
		if a.Has(ac.attr) {
			buf.WriteByte(';')
			buf.WriteString(ac.code)
		}
	}
}

// writeColor appends ";<color spec>" for use inside a larger SGR.
func writeColor(buf *bytes.Buffer, c Color, fg bool) {
	buf.WriteByte(';')
	writeColorBare(buf, c, fg)
}

// writeColorBare appends the SGR parameters selecting a color.
func writeColorBare(buf *bytes.Buffer, c Color, fg bool) {
	switch c.Mode {
	case ColorDefault:
		if fg {
			buf.WriteString("39")
		} else {
			buf.WriteString("49")
		}
	case ColorBasic:
		base := 30
		if !fg {
			base = 40
		}
		if c.Index >= 8 {
			appendIntBuf(buf, base+60+int(c.Index-8))
		} else {
			appendIntBuf(buf, base+int(c.Index))
		}
	case Color256:
		if fg {
			buf.WriteString("38;5;")
		} else {
			buf.WriteString("48;5;")
		}
		appendIntBuf(buf, int(c.Index))
	case ColorRGB:
		if fg {
			buf.WriteString("38;2;")
		} else {
			buf.WriteString("48;2;")
		}
		appendIntBuf(buf, int(c.R))
		buf.WriteByte(';')
		appendIntBuf(buf, int(c.G))
		buf.WriteByte(';')
		appendIntBuf(buf, int(c.B))
	}
}

// MoveTo positions the cursor, using a short relative move when cheaper
// than a full cup sequence and eliding the move entirely when the cursor
// is already there.
func (rs *RenderState) MoveTo(buf *bytes.Buffer, x, y int) {
	if rs.posValid && x == rs.x && y == rs.y {
		return
	}
	if rs.posValid && y == rs.y {
		switch dx := x - rs.x; {
		case x == 0:
			buf.WriteByte('\r')
			rs.x = 0
			return
		case dx > 0 && dx <= 4:
			buf.WriteString("\x1b[")
			if dx > 1 {
				appendIntBuf(buf, dx)
			}
			buf.WriteByte('C')
			rs.x = x
			return
		}
	}
	if cup, ok := rs.caps.String("cup"); ok {
		buf.WriteString(rs.caps.EvalString(cup, y, x))
	} else {
		buf.WriteString("\x1b[")
		appendIntBuf(buf, y+1)
		buf.WriteByte(';')
		appendIntBuf(buf, x+1)
		buf.WriteByte('H')
	}
	rs.x = x
	rs.y = y
	rs.posValid = true
}

// advance records cursor motion caused by emitting glyphs.
func (rs *RenderState) advance(n int) {
	if rs.posValid {
		rs.x += n
	}
}

// SyncSupported reports whether the terminal advertises synchronized
// updates (DEC mode 2026).
func (rs *RenderState) SyncSupported() bool {
	_, ok := rs.caps.String("sync")
	return ok
}

// BeginSync emits the Begin-Synchronized-Update bracket.
func (rs *RenderState) BeginSync(buf *bytes.Buffer) {
	if s, ok := rs.caps.String("sync"); ok {
		buf.WriteString(rs.caps.EvalString(s, 1))
	}
}

// EndSync emits the End-Synchronized-Update bracket and invalidates the
// cache, as required at every synchronized-update boundary.
func (rs *RenderState) EndSync(buf *bytes.Buffer) {
	if s, ok := rs.caps.String("sync"); ok {
		buf.WriteString(rs.caps.EvalString(s, 2))
	}
	rs.Invalidate()
}

// appendIntBuf writes a non-negative integer without allocation.
func appendIntBuf(buf *bytes.Buffer, n int) {
	if n == 0 {
		buf.WriteByte('0')
		return
	}
	if n < 0 {
		buf.WriteByte('-')
		n = -n
	}
	var scratch [10]byte
	i := len(scratch)
	for n > 0 {
		i--
		scratch[i] = byte('0' + n%10)
		n /= 10
	}
	buf.Write(scratch[i:])
}
