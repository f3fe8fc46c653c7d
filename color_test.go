package weft

import "testing"

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#ff0000", RGB(255, 0, 0), false},
		{"ff0000", RGB(255, 0, 0), false},
		{"#F80", RGB(255, 136, 0), false},
		{"#0aC", RGB(0, 170, 204), false},
		{"#123456", RGB(0x12, 0x34, 0x56), false},
		{"", Color{}, true},
		{"#12345", Color{}, true},
		{"#zzzzzz", Color{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseHexColor(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseHexColor(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestTo256(t *testing.T) {
	t.Run("CubeCorners", func(t *testing.T) {
		tests := []struct {
			in   Color
			want uint8
		}{
			{RGB(255, 0, 0), 196},
			{RGB(0, 255, 0), 46},
			{RGB(0, 0, 255), 21},
			{RGB(255, 0, 255), 201},
		}
		for _, tt := range tests {
			got := tt.in.To256()
			if got.Mode != Color256 || got.Index != tt.want {
				t.Errorf("To256(%+v) = %+v, want index %d", tt.in, got, tt.want)
			}
		}
	})

	t.Run("Grayscale", func(t *testing.T) {
		g := RGB(128, 128, 128).To256()
		if g.Index < 232 {
			t.Errorf("mid gray should land on the grayscale ramp, got %d", g.Index)
		}
		if b := RGB(0, 0, 0).To256(); b.Index != 16 {
			t.Errorf("black should map to cube black 16, got %d", b.Index)
		}
		if w := RGB(255, 255, 255).To256(); w.Index != 231 {
			t.Errorf("white should map to cube white 231, got %d", w.Index)
		}
	})

	t.Run("BasicPassThrough", func(t *testing.T) {
		if got := Red.To256(); got.Index != 1 || got.Mode != Color256 {
			t.Errorf("basic red To256 = %+v", got)
		}
	})
}

// Round-trip convergence: after two rounds every RGB value reaches a
// fixed point of the 256-palette projection.
func TestColorRoundTripConvergence(t *testing.T) {
	for r := 0; r < 256; r += 17 {
		for g := 0; g < 256; g += 17 {
			for b := 0; b < 256; b += 17 {
				c := RGB(uint8(r), uint8(g), uint8(b))
				once := c.To256()
				twice := once.ToRGB().To256()
				thrice := twice.ToRGB().To256()
				if twice != thrice {
					t.Fatalf("round trip of %+v not stable: %+v vs %+v", c, twice, thrice)
				}
			}
		}
	}
}

func TestToBasic(t *testing.T) {
	tests := []struct {
		in   Color
		want Color
	}{
		{RGB(255, 0, 0), Red},
		{RGB(0, 200, 0), Green},
		{RGB(0, 0, 220), Blue},
		{RGB(230, 220, 30), Yellow},
		{RGB(10, 10, 10), Black},
		{RGB(250, 250, 250), White},
		{BrightRed, Red},
		{DefaultColor(), DefaultColor()},
	}
	for _, tt := range tests {
		if got := tt.in.ToBasic(); got != tt.want {
			t.Errorf("ToBasic(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestLerp(t *testing.T) {
	a, b := RGB(0, 0, 0), RGB(200, 100, 50)
	if got := a.Lerp(b, 0); got != a {
		t.Errorf("t=0 should return start, got %+v", got)
	}
	if got := a.Lerp(b, 1); got != b {
		t.Errorf("t=1 should return end, got %+v", got)
	}
	mid := a.Lerp(b, 0.5)
	if mid.R != 100 || mid.G != 50 || mid.B != 25 {
		t.Errorf("midpoint = %+v", mid)
	}
}
