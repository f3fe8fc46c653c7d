package weft

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderStateStyleCache(t *testing.T) {
	rs := NewRenderState(plainCaps())
	var out bytes.Buffer

	style := DefaultStyle().Foreground(Red).Bold()
	rs.SetStyle(&out, style)
	first := out.String()
	if first == "" {
		t.Fatal("first style should emit")
	}

	out.Reset()
	rs.SetStyle(&out, style)
	if out.Len() != 0 {
		t.Errorf("repeated style should be a no-op, got %q", out.String())
	}
}

func TestRenderStateAdditiveDelta(t *testing.T) {
	rs := NewRenderState(plainCaps())
	var out bytes.Buffer

	rs.SetStyle(&out, DefaultStyle().Bold())
	out.Reset()
	rs.SetStyle(&out, DefaultStyle().Bold().Underline())
	s := out.String()
	if strings.Contains(s, "[0") {
		t.Errorf("adding an attribute should not force a reset, got %q", s)
	}
	if !strings.Contains(s, "4") {
		t.Errorf("underline introducer missing from %q", s)
	}
}

func TestRenderStateRemovalForcesReset(t *testing.T) {
	rs := NewRenderState(plainCaps())
	var out bytes.Buffer

	rs.SetStyle(&out, DefaultStyle().Bold().Underline())
	out.Reset()
	rs.SetStyle(&out, DefaultStyle().Underline())
	s := out.String()
	if !strings.HasPrefix(s, "\x1b[0") {
		t.Errorf("removing an attribute should reset and re-apply, got %q", s)
	}
	if !strings.Contains(s, ";4") {
		t.Errorf("remaining underline should be re-applied in %q", s)
	}
}

func TestRenderStateColorEmission(t *testing.T) {
	tests := []struct {
		name  string
		style Style
		want  string
	}{
		{"default fg", DefaultStyle(), "\x1b[0;39;49m"},
		{"basic fg", DefaultStyle().Foreground(Green), "\x1b[0;32;49m"},
		{"bright fg", DefaultStyle().Foreground(BrightRed), "\x1b[0;91;49m"},
		{"palette fg", DefaultStyle().Foreground(PaletteColor(196)), "\x1b[0;38;5;196;49m"},
		{"rgb fg", DefaultStyle().Foreground(RGB(1, 2, 3)), "\x1b[0;38;2;1;2;3;49m"},
		{"palette bg", DefaultStyle().Background(PaletteColor(20)), "\x1b[0;39;48;5;20m"},
		{"rgb bg", DefaultStyle().Background(RGB(9, 8, 7)), "\x1b[0;39;48;2;9;8;7m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRenderState(plainCaps())
			var out bytes.Buffer
			rs.SetStyle(&out, tt.style)
			if out.String() != tt.want {
				t.Errorf("got %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestRenderStateMoveTo(t *testing.T) {
	t.Run("AbsoluteThenNoop", func(t *testing.T) {
		rs := NewRenderState(plainCaps())
		var out bytes.Buffer
		rs.MoveTo(&out, 4, 9)
		if out.String() != "\x1b[10;5H" {
			t.Errorf("got %q", out.String())
		}
		out.Reset()
		rs.MoveTo(&out, 4, 9)
		if out.Len() != 0 {
			t.Errorf("repeated move should be a no-op, got %q", out.String())
		}
	})

	t.Run("ShortForwardMove", func(t *testing.T) {
		rs := NewRenderState(plainCaps())
		var out bytes.Buffer
		rs.MoveTo(&out, 4, 9)
		out.Reset()
		rs.MoveTo(&out, 6, 9)
		if out.String() != "\x1b[2C" {
			t.Errorf("short same-row move should use CUF, got %q", out.String())
		}
	})

	t.Run("CarriageReturn", func(t *testing.T) {
		rs := NewRenderState(plainCaps())
		var out bytes.Buffer
		rs.MoveTo(&out, 4, 9)
		out.Reset()
		rs.MoveTo(&out, 0, 9)
		if out.String() != "\r" {
			t.Errorf("column zero same-row should use CR, got %q", out.String())
		}
	})

	t.Run("AdvanceTracksGlyphs", func(t *testing.T) {
		rs := NewRenderState(plainCaps())
		var out bytes.Buffer
		rs.MoveTo(&out, 0, 0)
		rs.advance(3)
		out.Reset()
		rs.MoveTo(&out, 3, 0)
		if out.Len() != 0 {
			t.Errorf("cursor already at 3 after glyphs, got %q", out.String())
		}
	})
}

func TestRenderStateInvalidate(t *testing.T) {
	rs := NewRenderState(plainCaps())
	var out bytes.Buffer
	style := DefaultStyle().Foreground(Red)
	rs.SetStyle(&out, style)
	rs.MoveTo(&out, 1, 1)

	rs.Invalidate()
	out.Reset()
	rs.SetStyle(&out, style)
	if out.Len() == 0 {
		t.Error("style should re-emit after invalidation")
	}
	out.Reset()
	rs.MoveTo(&out, 1, 1)
	if out.Len() == 0 {
		t.Error("move should re-emit after invalidation")
	}
}
