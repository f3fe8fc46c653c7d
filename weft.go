// Package weft is a terminal UI core: a double-buffered cell grid with
// minimal-diff rendering, a terminfo capability store, an input decoder,
// and an event loop that multiplexes keys, mouse, resizes and timers into
// a single stream.
package weft

// Attribute represents text styling attributes that can be combined.
type Attribute uint8

// AttrNone is the empty attribute set.
const AttrNone Attribute = 0

const (
	AttrBold Attribute = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrReverse
	AttrHidden
	AttrStrikethrough
)

// Has returns true if the attribute set contains the given attribute.
func (a Attribute) Has(attr Attribute) bool {
	return a&attr != 0
}

// With returns a new attribute set with the given attribute added.
func (a Attribute) With(attr Attribute) Attribute {
	return a | attr
}

// Without returns a new attribute set with the given attribute removed.
func (a Attribute) Without(attr Attribute) Attribute {
	return a &^ attr
}

// ColorMode represents the color mode for a color value.
type ColorMode uint8

const (
	ColorDefault ColorMode = iota // Terminal default
	ColorBasic                    // Basic 16 colours (0-15)
	Color256                      // 256 color palette (0-255)
	ColorRGB                      // 24-bit true color
)

// Color represents a terminal color.
type Color struct {
	Mode    ColorMode
	R, G, B uint8 // For RGB mode
	Index   uint8 // For basic/256 mode
}

// DefaultColor returns the terminal's default color.
func DefaultColor() Color {
	return Color{Mode: ColorDefault}
}

// BasicColor returns one of the 16 basic terminal colours.
func BasicColor(index uint8) Color {
	return Color{Mode: ColorBasic, Index: index}
}

// PaletteColor returns one of the 256 palette colours.
func PaletteColor(index uint8) Color {
	return Color{Mode: Color256, Index: index}
}

// RGB returns a 24-bit true color.
func RGB(r, g, b uint8) Color {
	return Color{Mode: ColorRGB, R: r, G: g, B: b}
}

// Standard basic colours for convenience.
var (
	Black   = BasicColor(0)
	Red     = BasicColor(1)
	Green   = BasicColor(2)
	Yellow  = BasicColor(3)
	Blue    = BasicColor(4)
	Magenta = BasicColor(5)
	Cyan    = BasicColor(6)
	White   = BasicColor(7)

	// Bright variants
	BrightBlack   = BasicColor(8)
	BrightRed     = BasicColor(9)
	BrightGreen   = BasicColor(10)
	BrightYellow  = BasicColor(11)
	BrightBlue    = BasicColor(12)
	BrightMagenta = BasicColor(13)
	BrightCyan    = BasicColor(14)
	BrightWhite   = BasicColor(15)
)

// Equal returns true if two colours are equal.
func (c Color) Equal(other Color) bool {
	return c == other
}

// Style combines foreground, background colours and attributes.
type Style struct {
	FG   Color
	BG   Color
	Attr Attribute
}

// DefaultStyle returns a style with default colours and no attributes.
func DefaultStyle() Style {
	return Style{
		FG: DefaultColor(),
		BG: DefaultColor(),
	}
}

// Foreground returns a new style with the given foreground color.
func (s Style) Foreground(c Color) Style {
	s.FG = c
	return s
}

// Background returns a new style with the given background color.
func (s Style) Background(c Color) Style {
	s.BG = c
	return s
}

// Bold returns a new style with bold enabled.
func (s Style) Bold() Style {
	s.Attr = s.Attr.With(AttrBold)
	return s
}

// Dim returns a new style with dim enabled.
func (s Style) Dim() Style {
	s.Attr = s.Attr.With(AttrDim)
	return s
}

// Italic returns a new style with italic enabled.
func (s Style) Italic() Style {
	s.Attr = s.Attr.With(AttrItalic)
	return s
}

// Underline returns a new style with underline enabled.
func (s Style) Underline() Style {
	s.Attr = s.Attr.With(AttrUnderline)
	return s
}

// Blink returns a new style with blink enabled.
func (s Style) Blink() Style {
	s.Attr = s.Attr.With(AttrBlink)
	return s
}

// Reverse returns a new style with reverse video enabled.
func (s Style) Reverse() Style {
	s.Attr = s.Attr.With(AttrReverse)
	return s
}

// Hidden returns a new style with hidden (concealed) text enabled.
func (s Style) Hidden() Style {
	s.Attr = s.Attr.With(AttrHidden)
	return s
}

// Strikethrough returns a new style with strikethrough enabled.
func (s Style) Strikethrough() Style {
	s.Attr = s.Attr.With(AttrStrikethrough)
	return s
}

// Equal returns true if two styles are equal.
func (s Style) Equal(other Style) bool {
	return s == other
}

// Cell represents a single character cell on the terminal grid.
//
// A cell is regular (one column), a wide leader (one grid column whose
// glyph displays two columns wide), or a continuation: the column to the
// right of a wide leader, logically owned by it. Continuations carry
// Rune 0 and are never rendered on their own.
type Cell struct {
	Rune  rune
	Style Style
	wide  bool // wide leader: glyph occupies this column and the next
	cont  bool // continuation: owned by the leader immediately left
}

// EmptyCell returns a cell with a space and default style.
func EmptyCell() Cell {
	return Cell{Rune: ' ', Style: DefaultStyle()}
}

// NewCell creates a cell with the given rune and style.
func NewCell(r rune, style Style) Cell {
	return Cell{Rune: r, Style: style}
}

// IsWide returns true if the cell is a wide leader.
func (c Cell) IsWide() bool {
	return c.wide
}

// IsContinuation returns true if the cell is the right half of a wide cell.
func (c Cell) IsContinuation() bool {
	return c.cont
}

// Width returns the display width of the cell: 2 for a wide leader,
// 0 for a continuation, 1 otherwise.
func (c Cell) Width() int {
	switch {
	case c.wide:
		return 2
	case c.cont:
		return 0
	default:
		return 1
	}
}

// Equal returns true if two cells are equal.
func (c Cell) Equal(other Cell) bool {
	return c == other
}

func continuationCell(style Style) Cell {
	return Cell{Rune: 0, Style: style, cont: true}
}
