package weft

import (
	"errors"
	"strings"
	"testing"
)

// tiBlob assembles a compiled terminfo entry for tests.
type tiBlob struct {
	magic   int
	names   string
	bools   []byte
	numbers []int
	strOffs []int
	table   []byte
}

func (b tiBlob) bytes() []byte {
	le16 := func(out []byte, v int) []byte {
		return append(out, byte(v), byte(v>>8))
	}
	numSize := 2
	if b.magic == magic32 {
		numSize = 4
	}
	namesLen := len(b.names) + 1

	var out []byte
	out = le16(out, b.magic)
	out = le16(out, namesLen)
	out = le16(out, len(b.bools))
	out = le16(out, len(b.numbers))
	out = le16(out, len(b.strOffs))
	out = le16(out, len(b.table))
	out = append(out, b.names...)
	out = append(out, 0)
	out = append(out, b.bools...)
	if (namesLen+len(b.bools))%2 != 0 {
		out = append(out, 0)
	}
	for _, n := range b.numbers {
		if numSize == 2 {
			out = le16(out, n)
		} else {
			out = append(out, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
		}
	}
	for _, o := range b.strOffs {
		out = le16(out, o)
	}
	return append(out, b.table...)
}

// sampleBlob carries cup at string index 10, cols/lines/colors numerics
// and am at boolean index 1.
func sampleBlob(magic int) tiBlob {
	numbers := make([]int, 14)
	for i := range numbers {
		numbers[i] = -1
	}
	numbers[0] = 80
	numbers[2] = 24
	numbers[13] = 256

	strOffs := make([]int, 11)
	for i := range strOffs {
		strOffs[i] = -1
	}
	strOffs[10] = 0

	return tiBlob{
		magic:   magic,
		names:   "test|Test terminal",
		bools:   []byte{0, 1},
		numbers: numbers,
		strOffs: strOffs,
		table:   append([]byte(capCup), 0),
	}
}

func TestDecodeTerminfo(t *testing.T) {
	for _, tt := range []struct {
		name  string
		magic int
	}{
		{"16-bit format", magic16},
		{"32-bit format", magic32},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := DecodeTerminfo(sampleBlob(tt.magic).bytes(), nil)
			if err != nil {
				t.Fatal(err)
			}
			if cs.Name != "test" {
				t.Errorf("name = %q, want test", cs.Name)
			}
			if cup, ok := cs.String("cup"); !ok || cup != capCup {
				t.Errorf("cup = %q, %v", cup, ok)
			}
			if got := cs.Number("colors"); got != 256 {
				t.Errorf("colors = %d, want 256", got)
			}
			if got := cs.Number("cols"); got != 80 {
				t.Errorf("cols = %d, want 80", got)
			}
			if !cs.Bool("am") {
				t.Error("am should be set")
			}
			if _, ok := cs.String("setaf"); ok {
				t.Error("setaf is beyond the blob's string count and must be absent")
			}
		})
	}
}

func TestDecodeTerminfoByName(t *testing.T) {
	cs, err := DecodeTerminfo(sampleBlob(magic16).bytes(), []string{"cup", "colors"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cs.String("cup"); !ok {
		t.Error("requested cup missing")
	}
	if cs.Number("colors") != 256 {
		t.Error("requested colors missing")
	}
	if cs.Number("cols") != -1 {
		t.Error("unrequested cols should be omitted")
	}
	if cs.Bool("am") {
		t.Error("unrequested am should be omitted")
	}
	// Unknown names are silently ignored, not errors.
	if _, err := DecodeTerminfo(sampleBlob(magic16).bytes(), []string{"no-such-cap"}); err != nil {
		t.Errorf("unknown capability name should not error: %v", err)
	}
}

func TestDecodeTerminfoErrors(t *testing.T) {
	t.Run("Truncated", func(t *testing.T) {
		_, err := DecodeTerminfo([]byte{1, 2, 3}, nil)
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Kind != TruncatedData {
			t.Fatalf("want TruncatedData, got %v", err)
		}
		if !strings.Contains(pe.Details, "12") {
			t.Errorf("message should reference the 12-byte header minimum: %q", pe.Details)
		}
	})

	t.Run("BadMagic", func(t *testing.T) {
		blob := sampleBlob(magic16)
		blob.magic = 999
		_, err := DecodeTerminfo(blob.bytes(), nil)
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Kind != InvalidMagic {
			t.Fatalf("want InvalidMagic, got %v", err)
		}
	})

	t.Run("OversizedHeaderFields", func(t *testing.T) {
		le16 := func(out []byte, v int) []byte {
			return append(out, byte(v), byte(v>>8))
		}
		mk := func(names, bools, nums, strs, table int) []byte {
			var out []byte
			out = le16(out, magic16)
			out = le16(out, names)
			out = le16(out, bools)
			out = le16(out, nums)
			out = le16(out, strs)
			out = le16(out, table)
			return out
		}
		cases := [][]byte{
			mk(5000, 0, 0, 0, 0),  // names too long
			mk(1, 600, 0, 0, 0),   // boolean count over limit
			mk(1, 0, 600, 0, 0),   // numeric count over limit
			mk(1, 0, 0, 600, 0),   // string count over limit
			mk(1, 0, 0, 0, -5),    // negative table size
		}
		for i, data := range cases {
			_, err := DecodeTerminfo(data, nil)
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Kind != InvalidHeader {
				t.Errorf("case %d: want InvalidHeader, got %v", i, err)
			}
		}
	})

	t.Run("SectionsPastEnd", func(t *testing.T) {
		blob := sampleBlob(magic16).bytes()
		_, err := DecodeTerminfo(blob[:len(blob)-4], nil)
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Kind != TruncatedData {
			t.Fatalf("want TruncatedData, got %v", err)
		}
	})
}

func TestBuiltinCapabilities(t *testing.T) {
	t.Run("Known256", func(t *testing.T) {
		cs := BuiltinCapabilities("xterm-256color")
		if cs.Colors() != 256 {
			t.Errorf("colors = %d", cs.Colors())
		}
		if _, ok := cs.String("sync"); !ok {
			t.Error("xterm-256color should advertise synchronized updates")
		}
		if got := cs.Eval("cup", 4, 9); got != "\x1b[5;10H" {
			t.Errorf("cup = %q", got)
		}
	})

	t.Run("Console", func(t *testing.T) {
		cs := BuiltinCapabilities("linux")
		if _, ok := cs.String("smcup"); ok {
			t.Error("linux console has no alternate screen")
		}
	})

	t.Run("UnknownFallsBack", func(t *testing.T) {
		cs := BuiltinCapabilities("mystery-terminal")
		if _, ok := cs.String("cup"); !ok {
			t.Error("fallback entry must still address the cursor")
		}
	})

	t.Run("SuffixMatch", func(t *testing.T) {
		cs := BuiltinCapabilities("whatever-256color")
		if cs.Colors() != 256 {
			t.Errorf("-256color suffix should pick the 256-color entry, got %d", cs.Colors())
		}
	})
}

func TestLoadCapabilities(t *testing.T) {
	t.Run("DecodesGoodBlob", func(t *testing.T) {
		cs := LoadCapabilities("test", sampleBlob(magic16).bytes())
		if got := cs.Number("colors"); got != 256 {
			t.Errorf("colors = %d", got)
		}
	})

	t.Run("FallsBackOnGarbage", func(t *testing.T) {
		cs := LoadCapabilities("xterm", []byte{9, 9, 9})
		if _, ok := cs.String("cup"); !ok {
			t.Error("builtin fallback should provide cup")
		}
	})
}
