package weft

import (
	"fmt"
	"os"
	"sync"
)

// Compiled terminfo magic numbers. The base format magic is octal 0432;
// the extended 32-bit-numerics format magic is DECIMAL 542 (not octal),
// a detail several decoders get wrong.
const (
	magic16 = 0o432
	magic32 = 542

	headerLen = 12

	maxNamesLen  = 4096
	maxCapCount  = 512
	maxStringTab = 65536
)

// Standard capability indices in the compiled string section, from the
// ncurses Caps ordering. Only the capabilities this package consumes are
// listed; the decoder silently skips names it does not recognise.
var stringCapIndex = map[string]int{
	"cbt":   0,
	"bel":   1,
	"cr":    2,
	"clear": 5,
	"el":    6,
	"ed":    7,
	"hpa":   8,
	"cup":   10,
	"cud1":  11,
	"home":  12,
	"civis": 13,
	"cub1":  14,
	"cnorm": 16,
	"cuf1":  17,
	"cuu1":  19,
	"cvvis": 20,
	"smacs": 25,
	"blink": 26,
	"bold":  27,
	"smcup": 28,
	"dim":   30,
	"invis": 32,
	"rev":   34,
	"smso":  35,
	"smul":  36,
	"rmacs": 38,
	"sgr0":  39,
	"rmcup": 40,
	"rmso":  43,
	"rmul":  44,
	"kbs":   55,
	"kdch1": 59,
	"kcud1": 61,
	"kf1":   66,
	"kf10":  67,
	"kf2":   68,
	"kf3":   69,
	"kf4":   70,
	"kf5":   71,
	"kf6":   72,
	"kf7":   73,
	"kf8":   74,
	"kf9":   75,
	"khome": 76,
	"kich1": 77,
	"kcub1": 79,
	"knp":   81,
	"kpp":   82,
	"kcuf1": 83,
	"kcuu1": 87,
	"rmkx":  88,
	"smkx":  89,
	"kcbt":  148,
	"kend":  164,
	"kf11":  216,
	"kf12":  217,
	"op":    297,
	"kmous": 355,
	"setaf": 359,
	"setab": 360,
}

// Numeric capability indices (ncurses numnames ordering).
var numCapIndex = map[string]int{
	"cols":   0,
	"lines":  2,
	"colors": 13,
}

// Boolean capability indices (ncurses boolnames ordering).
var boolCapIndex = map[string]int{
	"am":   1,
	"xenl": 4,
	"km":   8,
	"mir":  13,
	"msgr": 14,
	"npc":  25,
	"bce":  28,
}

// CapabilitySet is an immutable store of parsed terminal capabilities,
// keyed by short capability name. String values are raw bytes that may
// contain %-escapes for the evaluator.
//
// The 26 static evaluator variables (%PA..%PZ) live here so they persist
// across Eval calls on the same set without leaking between terminals.
type CapabilitySet struct {
	Name string

	bools   map[string]bool
	numbers map[string]int
	strings map[string]string

	mu    sync.Mutex
	svars [26]string
}

// Bool reports the named boolean capability.
func (cs *CapabilitySet) Bool(name string) bool {
	return cs.bools[name]
}

// Number returns the named numeric capability, or -1 when absent.
func (cs *CapabilitySet) Number(name string) int {
	if n, ok := cs.numbers[name]; ok {
		return n
	}
	return -1
}

// String returns the raw bytes of the named string capability.
func (cs *CapabilitySet) String(name string) (string, bool) {
	s, ok := cs.strings[name]
	return s, ok
}

// MustString returns the named string capability or a CapabilityError.
func (cs *CapabilitySet) MustString(name string) (string, error) {
	if s, ok := cs.strings[name]; ok {
		return s, nil
	}
	return "", &CapabilityError{Name: name}
}

// Colors returns the color count advertised by the terminal, or 8 when
// the database does not say.
func (cs *CapabilitySet) Colors() int {
	if n := cs.Number("colors"); n > 0 {
		return n
	}
	return 8
}

// DecodeTerminfo parses a compiled terminfo blob in the 16-bit (magic
// 0432 octal) or extended 32-bit (magic 542 decimal) format. The names
// parameter selects which capabilities to extract; pass nil for every
// capability this package recognises. Unknown or absent names are
// silently omitted. Malformed input yields a *ParseError and callers
// normally fall back to BuiltinCapabilities.
func DecodeTerminfo(data []byte, names []string) (*CapabilitySet, error) {
	if len(data) < headerLen {
		return nil, &ParseError{
			Kind:    TruncatedData,
			Details: fmt.Sprintf("%d bytes, want at least the %d-byte header", len(data), headerLen),
		}
	}

	r16 := func(off int) int {
		// Little-endian int16; negative values mean "absent".
		v := int(data[off]) | int(data[off+1])<<8
		if v >= 0x8000 {
			v -= 0x10000
		}
		return v
	}

	magic := r16(0)
	numSize := 2
	switch magic {
	case magic16:
	case magic32:
		numSize = 4
	default:
		return nil, &ParseError{
			Kind:    InvalidMagic,
			Details: fmt.Sprintf("magic %#o, want 0432 or decimal 542", magic),
		}
	}

	namesLen := r16(2)
	boolCount := r16(4)
	numCount := r16(6)
	strCount := r16(8)
	tableLen := r16(10)

	switch {
	case namesLen < 0 || namesLen > maxNamesLen:
		return nil, &ParseError{Kind: InvalidHeader, Details: fmt.Sprintf("names section length %d", namesLen)}
	case boolCount < 0 || boolCount > maxCapCount:
		return nil, &ParseError{Kind: InvalidHeader, Details: fmt.Sprintf("boolean count %d", boolCount)}
	case numCount < 0 || numCount > maxCapCount:
		return nil, &ParseError{Kind: InvalidHeader, Details: fmt.Sprintf("numeric count %d", numCount)}
	case strCount < 0 || strCount > maxCapCount:
		return nil, &ParseError{Kind: InvalidHeader, Details: fmt.Sprintf("string count %d", strCount)}
	case tableLen < 0 || tableLen > maxStringTab:
		return nil, &ParseError{Kind: InvalidHeader, Details: fmt.Sprintf("string table size %d", tableLen)}
	}

	boolOff := headerLen + namesLen
	numOff := boolOff + boolCount
	if (namesLen+boolCount)%2 != 0 {
		numOff++ // numeric section is word-aligned
	}
	strOff := numOff + numSize*numCount
	tableOff := strOff + 2*strCount
	if tableOff+tableLen > len(data) {
		return nil, &ParseError{
			Kind:    TruncatedData,
			Details: fmt.Sprintf("%d bytes, sections need %d", len(data), tableOff+tableLen),
		}
	}

	cs := &CapabilitySet{
		bools:   make(map[string]bool),
		numbers: make(map[string]int),
		strings: make(map[string]string),
	}

	// Terminal name: first |-separated alias in the names section.
	nameEnd := headerLen
	for nameEnd < boolOff && data[nameEnd] != 0 && data[nameEnd] != '|' {
		nameEnd++
	}
	cs.Name = string(data[headerLen:nameEnd])

	want := func(name string) bool {
		if names == nil {
			return true
		}
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}

	for name, idx := range boolCapIndex {
		if !want(name) || idx >= boolCount {
			continue
		}
		if data[boolOff+idx] == 1 {
			cs.bools[name] = true
		}
	}

	for name, idx := range numCapIndex {
		if !want(name) || idx >= numCount {
			continue
		}
		off := numOff + idx*numSize
		var v int
		if numSize == 2 {
			v = r16(off)
		} else {
			v = int(data[off]) | int(data[off+1])<<8 | int(data[off+2])<<16 | int(data[off+3])<<24
			if v >= 1<<31 {
				v -= 1 << 32
			}
		}
		if v >= 0 {
			cs.numbers[name] = v
		}
	}

	for name, idx := range stringCapIndex {
		if !want(name) || idx >= strCount {
			continue
		}
		soff := r16(strOff + 2*idx)
		if soff < 0 || soff >= tableLen {
			continue // absent or cancelled
		}
		end := tableOff + soff
		for end < tableOff+tableLen && data[end] != 0 {
			end++
		}
		cs.strings[name] = string(data[tableOff+soff : end])
	}

	return cs, nil
}

// LoadCapabilities resolves a capability set for the named terminal type.
// When data is non-nil it is decoded as a compiled terminfo entry, with
// the built-in table as fallback on parse errors. When data is nil the
// built-in table is consulted directly. An empty term is replaced by
// $TERM. File discovery
// is the caller's concern; this package only consumes bytes.
func LoadCapabilities(term string, data []byte) *CapabilitySet {
	if term == "" {
		term = os.Getenv("TERM")
	}
	if data != nil {
		cs, err := DecodeTerminfo(data, nil)
		if err == nil {
			if cs.Name == "" {
				cs.Name = term
			}
			return cs
		}
		logDebug("terminfo decode failed, using builtin table", "term", term, "err", err)
	}
	return BuiltinCapabilities(term)
}
