package weft

import (
	"strings"
	"testing"
)

func evalCaps() *CapabilitySet {
	return BuiltinCapabilities("xterm-256color")
}

func TestEvalCup(t *testing.T) {
	cs := evalCaps()
	tests := []struct {
		row, col int
		want     string
	}{
		{4, 9, "\x1b[5;10H"},
		{0, 0, "\x1b[1;1H"},
		{23, 79, "\x1b[24;80H"},
	}
	for _, tt := range tests {
		got := cs.Eval("cup", tt.row, tt.col)
		if got != tt.want {
			t.Errorf("cup(%d,%d) = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestEvalSetaf(t *testing.T) {
	cs := evalCaps()
	tests := []struct {
		color int
		want  string
	}{
		{1, "\x1b[31m"},      // basic
		{9, "\x1b[91m"},      // bright
		{196, "\x1b[38;5;196m"}, // palette
	}
	for _, tt := range tests {
		got := cs.Eval("setaf", tt.color)
		if got != tt.want {
			t.Errorf("setaf(%d) = %q, want %q", tt.color, got, tt.want)
		}
	}
}

func TestEvalStringIndexed256(t *testing.T) {
	cs := evalCaps()
	if got := cs.EvalString("\x1b[38;5;%p1%dm", 196); got != "\x1b[38;5;196m" {
		t.Errorf("got %q", got)
	}
}

func TestEvalOperators(t *testing.T) {
	cs := evalCaps()
	tests := []struct {
		name string
		in   string
		p    []any
		want string
	}{
		{"literal percent", "100%%", nil, "100%"},
		{"add", "%p1%p2%+%d", []any{3, 4}, "7"},
		{"subtract", "%p1%p2%-%d", []any{10, 4}, "6"},
		{"multiply", "%p1%p2%*%d", []any{6, 7}, "42"},
		{"divide", "%p1%p2%/%d", []any{42, 6}, "7"},
		{"divide by zero", "%p1%p2%/%d", []any{42, 0}, "0"},
		{"mod", "%p1%p2%m%d", []any{17, 5}, "2"},
		{"mod by zero", "%p1%p2%m%d", []any{17, 0}, "0"},
		{"and", "%p1%p2%&%d", []any{12, 10}, "8"},
		{"or", "%p1%p2%|%d", []any{12, 10}, "14"},
		{"xor", "%p1%p2%^%d", []any{12, 10}, "6"},
		{"complement", "%p1%~%d", []any{0}, "-1"},
		{"logical and", "%p1%p2%A%d", []any{1, 0}, "0"},
		{"logical or", "%p1%p2%O%d", []any{1, 0}, "1"},
		{"not", "%p1%!%d", []any{0}, "1"},
		{"equal", "%p1%p2%=%d", []any{5, 5}, "1"},
		{"less", "%p1%p2%<%d", []any{3, 5}, "1"},
		{"greater", "%p1%p2%>%d", []any{3, 5}, "0"},
		{"char constant", "%'x'%c", nil, "x"},
		{"int constant", "%{123}%d", nil, "123"},
		{"strlen", "%p1%l%d", []any{"hello"}, "5"},
		{"string output", "%p1%s", []any{"abc"}, "abc"},
		{"char output", "%{65}%c", nil, "A"},
		{"width", "%p1%3d", []any{7}, "  7"},
		{"zero pad", "%p1%02d", []any{7}, "07"},
		{"signed flag", "%p1%:+d", []any{7}, "+7"},
		{"hex", "%p1%x", []any{255}, "ff"},
		{"increment", "%i%p1%d;%p2%d", []any{0, 0}, "1;1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cs.EvalString(tt.in, tt.p...); got != tt.want {
				t.Errorf("EvalString(%q, %v) = %q, want %q", tt.in, tt.p, got, tt.want)
			}
		})
	}
}

func TestEvalConditionals(t *testing.T) {
	cs := evalCaps()
	tests := []struct {
		name string
		in   string
		p    []any
		want string
	}{
		{"then", "%?%p1%tY%eN%;", []any{1}, "Y"},
		{"else", "%?%p1%tY%eN%;", []any{0}, "N"},
		{"no else taken", "%?%p1%tY%;done", []any{0}, "done"},
		{"else-if chain first", "%?%p1%{1}%=%ta%e%p1%{2}%=%tb%ec%;", []any{1}, "a"},
		{"else-if chain second", "%?%p1%{1}%=%ta%e%p1%{2}%=%tb%ec%;", []any{2}, "b"},
		{"else-if chain fallthrough", "%?%p1%{1}%=%ta%e%p1%{2}%=%tb%ec%;", []any{3}, "c"},
		{"nested then", "%?%p1%t%?%p2%tAB%eAC%;%eX%;", []any{1, 1}, "AB"},
		{"nested else", "%?%p1%t%?%p2%tAB%eAC%;%eX%;", []any{1, 0}, "AC"},
		{"nested outer else", "%?%p1%t%?%p2%tAB%eAC%;%eX%;", []any{0, 1}, "X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cs.EvalString(tt.in, tt.p...); got != tt.want {
				t.Errorf("EvalString(%q, %v) = %q, want %q", tt.in, tt.p, got, tt.want)
			}
		})
	}
}

func TestEvalVariables(t *testing.T) {
	cs := evalCaps()

	t.Run("DynamicPerCall", func(t *testing.T) {
		if got := cs.EvalString("%p1%Pa%ga%d%ga%d"); got != "00" {
			// No params: %p1 pushes 0; store and recall twice.
			t.Errorf("got %q", got)
		}
		if got := cs.EvalString("%p1%Pa%ga%d", 42); got != "42" {
			t.Errorf("got %q", got)
		}
		// Dynamic vars do not leak across calls.
		if got := cs.EvalString("%ga%d"); got != "0" {
			t.Errorf("dynamic variable leaked: %q", got)
		}
	})

	t.Run("StaticPersistAcrossCalls", func(t *testing.T) {
		cs.EvalString("%p1%PQ", 7)
		if got := cs.EvalString("%gQ%d"); got != "7" {
			t.Errorf("static variable should persist, got %q", got)
		}
	})

	t.Run("StaticScopedPerSet", func(t *testing.T) {
		other := BuiltinCapabilities("xterm")
		cs.EvalString("%p1%PZ", 9)
		if got := other.EvalString("%gZ%d"); got != "0" {
			t.Errorf("static variables must not cross capability sets, got %q", got)
		}
	})
}

// Evaluation must terminate without panicking and must not emit a bare %
// unless the input contained %%.
func TestEvalRobustness(t *testing.T) {
	cs := evalCaps()
	inputs := []string{
		"",
		"%",
		"%p",
		"%p1",
		"%?",
		"%?%p1%t",
		"%?%p1%tabc",
		"%{",
		"%{12",
		"%'",
		"%g",
		"%P",
		"%z",
		"%p1%p2%p3%+%+%+%d",
		"\x1b[%i%p1%d;%p2%dH",
		"%?%e%;",
		"%;%;%t%e",
		"%p1%02",
		"%:",
	}
	params := [][]any{nil, {1}, {1, 2}, {"x"}, {1, "y", 3}}
	for _, in := range inputs {
		for _, p := range params {
			got := cs.EvalString(in, p...)
			if !strings.Contains(in, "%%") && strings.Contains(got, "%") {
				t.Errorf("EvalString(%q, %v) leaked %% in %q", in, p, got)
			}
		}
	}
}
