package weft

import (
	"io"

	"github.com/mattn/go-runewidth"
)

// Buffer is a double-buffered cell grid: the back grid receives drawing
// calls and the front grid mirrors what the terminal currently shows.
// RenderTo walks both and emits only the difference. Dimensions are fixed
// for the life of the buffer; a resize allocates a new one.
type Buffer struct {
	width  int
	height int
	front  []Cell
	back   []Cell
	dirty  []bool // per-row hint: back row touched since last render

	defaultStyle Style
}

// NewBuffer creates a buffer with both grids blank.
func NewBuffer(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	b := &Buffer{
		width:        width,
		height:       height,
		front:        make([]Cell, width*height),
		back:         make([]Cell, width*height),
		dirty:        make([]bool, height),
		defaultStyle: DefaultStyle(),
	}
	empty := EmptyCell()
	for i := range b.front {
		b.front[i] = empty
		b.back[i] = empty
	}
	return b
}

// Width returns the buffer width.
func (b *Buffer) Width() int {
	return b.width
}

// Height returns the buffer height.
func (b *Buffer) Height() int {
	return b.height
}

// Size returns the buffer dimensions.
func (b *Buffer) Size() (width, height int) {
	return b.width, b.height
}

// InBounds returns true if the given coordinates are within the buffer.
func (b *Buffer) InBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

func (b *Buffer) index(x, y int) int {
	return y*b.width + x
}

// SetDefaultStyle sets the style used for blank cells by Clear.
func (b *Buffer) SetDefaultStyle(style Style) {
	b.defaultStyle = style
}

// Cell returns the pending (back) cell at the given coordinates, or an
// empty cell when out of bounds.
func (b *Buffer) Cell(x, y int) Cell {
	if !b.InBounds(x, y) {
		return EmptyCell()
	}
	return b.back[b.index(x, y)]
}

// blank returns a blank regular cell in the buffer's default style.
func (b *Buffer) blank() Cell {
	return Cell{Rune: ' ', Style: b.defaultStyle}
}

// clearWidePair restores the neighbours of position (x, y) to regular
// blanks when a write there would orphan half of a wide cell.
func (b *Buffer) clearWidePair(x, y int) {
	i := b.index(x, y)
	c := b.back[i]
	if c.cont && x > 0 {
		b.back[i-1] = b.blank()
	}
	if c.wide && x+1 < b.width {
		b.back[i+1] = b.blank()
	}
}

// SetCell writes one cell to the back grid. Out-of-bounds coordinates are
// silently discarded. Writing over either half of a wide cell clears the
// other half to a blank. A wide rune whose continuation would fall past
// the right edge is downgraded to a blank, since wide glyphs never span
// row boundaries.
func (b *Buffer) SetCell(x, y int, r rune, style Style) {
	if !b.InBounds(x, y) {
		return
	}

	w := runewidth.RuneWidth(r)
	if w <= 0 {
		w = 1
	}

	b.clearWidePair(x, y)

	i := b.index(x, y)
	if w == 2 {
		if x+1 >= b.width {
			b.back[i] = b.blank()
			b.dirty[y] = true
			return
		}
		b.clearWidePair(x+1, y)
		b.back[i] = Cell{Rune: r, Style: style, wide: true}
		b.back[i+1] = continuationCell(style)
	} else {
		b.back[i] = Cell{Rune: r, Style: style}
	}
	b.dirty[y] = true
}

// Clear fills the back grid with blanks in the default style. The cursor
// is untouched.
func (b *Buffer) Clear() {
	blank := b.blank()
	for i := range b.back {
		b.back[i] = blank
	}
	for y := range b.dirty {
		b.dirty[y] = true
	}
}

// Fill fills the back grid with the given rune and style.
func (b *Buffer) Fill(r rune, style Style) {
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			b.SetCell(x, y, r, style)
		}
	}
}

// WriteString writes a string starting at the given coordinates, handling
// wide runes. Returns the number of columns consumed.
func (b *Buffer) WriteString(x, y int, s string, style Style) int {
	start := x
	for _, r := range s {
		if x >= b.width {
			break
		}
		w := runewidth.RuneWidth(r)
		if w <= 0 {
			continue
		}
		b.SetCell(x, y, r, style)
		x += w
	}
	return x - start
}

// HLine draws a horizontal line of the given rune.
func (b *Buffer) HLine(x, y, length int, r rune, style Style) {
	for i := 0; i < length; i++ {
		b.SetCell(x+i, y, r, style)
	}
}

// VLine draws a vertical line of the given rune.
func (b *Buffer) VLine(x, y, length int, r rune, style Style) {
	for i := 0; i < length; i++ {
		b.SetCell(x, y+i, r, style)
	}
}

// RenderStats reports what the last render emitted.
type RenderStats struct {
	DirtyRows int // rows visited because their hint was set
	Runs      int // styled runs emitted
	Cells     int // cells written
}

var lastRenderStats RenderStats

// LastRenderStats returns statistics from the most recent RenderTo.
func LastRenderStats() RenderStats {
	return lastRenderStats
}

// RenderTo walks the back grid against the front, emits the minimal
// update stream to the sink, and syncs front to back. On terminals with
// synchronized-update support the frame is wrapped in the begin/end
// brackets; the end bracket is emitted on every exit path, panics
// included. When front and back already match, nothing is written.
func (b *Buffer) RenderTo(w io.Writer, rs *RenderState) (err error) {
	buf := &rs.out
	buf.Reset()

	stats := RenderStats{}
	began := false

	defer func() {
		if r := recover(); r != nil {
			if began {
				rs.EndSync(buf)
			}
			if buf.Len() > 0 {
				w.Write(buf.Bytes())
			}
			panic(r)
		}
	}()

	for y := 0; y < b.height; y++ {
		if !b.dirty[y] {
			continue
		}
		stats.DirtyRows++
		rowBase := y * b.width

		for x := 0; x < b.width; {
			i := rowBase + x
			bc := b.back[i]

			// A continuation never starts a run; its fate was decided by
			// the leader one column to the left.
			if bc.cont {
				b.front[i] = bc
				x++
				continue
			}
			if bc == b.front[i] {
				x++
				continue
			}

			if !began {
				began = true
				rs.BeginSync(buf)
			}

			// A run: consecutive dirty cells sharing the first cell's
			// style, emitted back-to-back after one move and one style
			// transition.
			rs.MoveTo(buf, x, y)
			runStyle := bc.Style
			rs.SetStyle(buf, runStyle)
			stats.Runs++
			for x < b.width {
				i = rowBase + x
				bc = b.back[i]
				if bc.cont {
					b.front[i] = bc
					x++
					continue
				}
				if bc == b.front[i] || !bc.Style.Equal(runStyle) {
					break
				}
				buf.WriteRune(bc.Rune)
				b.front[i] = bc
				rs.advance(bc.Width())
				stats.Cells++
				x++
			}
		}
		b.dirty[y] = false
	}

	if began {
		rs.EndSync(buf)
	}

	lastRenderStats = stats
	if buf.Len() > 0 {
		if _, werr := w.Write(buf.Bytes()); werr != nil {
			return ioErr("write", werr)
		}
	}
	return nil
}

// SyncTo forces a full repaint: the front grid is cleared to a sentinel
// that matches no real cell, so every cell is considered dirty.
func (b *Buffer) SyncTo(w io.Writer, rs *RenderState) error {
	for i := range b.front {
		b.front[i] = Cell{Rune: -1}
	}
	for y := range b.dirty {
		b.dirty[y] = true
	}
	rs.Invalidate()
	return b.RenderTo(w, rs)
}
