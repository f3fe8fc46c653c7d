package weft

import "strings"

// Built-in capability tables for common terminals, used when no compiled
// terminfo entry is available (or when one fails to decode). Values match
// the ncurses database entries for each terminal.

const (
	capCup     = "\x1b[%i%p1%d;%p2%dH"
	capClear   = "\x1b[H\x1b[2J"
	capEl      = "\x1b[K"
	capEd      = "\x1b[J"
	capCivis   = "\x1b[?25l"
	capCnorm   = "\x1b[?25h"
	capSmcup   = "\x1b[?1049h"
	capRmcup   = "\x1b[?1049l"
	capSgr0    = "\x1b[0m"
	capBold    = "\x1b[1m"
	capDim     = "\x1b[2m"
	capSmul    = "\x1b[4m"
	capBlink   = "\x1b[5m"
	capRev     = "\x1b[7m"
	capInvis   = "\x1b[8m"
	capBel     = "\a"
	capKmous   = "\x1b[M"
	capSetaf8 = "\x1b[%?%p1%{8}%<%t3%p1%d%e%p1%{16}%<%t9%p1%{8}%-%d%;m"
	capSetab8 = "\x1b[%?%p1%{8}%<%t4%p1%d%e%p1%{16}%<%t10%p1%{8}%-%d%;m"

	capSetaf256 = "\x1b[%?%p1%{8}%<%t3%p1%d%e%p1%{16}%<%t9%p1%{8}%-%d%e38;5;%p1%d%;m"
	capSetab256 = "\x1b[%?%p1%{8}%<%t4%p1%d%e%p1%{16}%<%t10%p1%{8}%-%d%e48;5;%p1%d%;m"

	// Synchronized update (DEC mode 2026): param 1 begins, anything else
	// ends. Mirrors the xterm+sync fragment from the ncurses database.
	capSync = "\x1b[?2026%?%p1%{1}%=%th%el%;"
)

// builtinEntry is a template for one terminal family.
type builtinEntry struct {
	names   []string
	colors  int
	sync    bool
	strCaps map[string]string
}

var builtinTable = []builtinEntry{
	{
		names:  []string{"xterm-256color", "xterm-kitty", "tmux-256color", "screen-256color", "rxvt-256color", "st-256color", "alacritty", "wezterm", "ghostty", "foot"},
		colors: 256,
		sync:   true,
		strCaps: map[string]string{
			"setaf": capSetaf256,
			"setab": capSetab256,
		},
	},
	{
		names:  []string{"xterm", "screen", "tmux", "rxvt-unicode", "st"},
		colors: 8,
		strCaps: map[string]string{
			"setaf": capSetaf8,
			"setab": capSetab8,
		},
	},
	{
		names:  []string{"linux", "vt220", "vt100"},
		colors: 8,
		strCaps: map[string]string{
			"setaf": capSetaf8,
			"setab": capSetab8,
			"smcup": "", // no alternate screen on the console
			"rmcup": "",
		},
	},
}

// BuiltinCapabilities returns the hard-coded capability set for the named
// terminal type. Unknown names match the closest family by prefix and
// fall back to the 8-color xterm entry, so the result is always usable.
func BuiltinCapabilities(term string) *CapabilitySet {
	entry := &builtinTable[1] // xterm fallback
	found := false
	for i := range builtinTable {
		for _, n := range builtinTable[i].names {
			if n == term {
				entry = &builtinTable[i]
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		// -256color suffixed variants of anything get the 256-color entry.
		if strings.HasSuffix(term, "-256color") || strings.Contains(term, "truecolor") {
			entry = &builtinTable[0]
		} else {
			for i := range builtinTable {
				for _, n := range builtinTable[i].names {
					if strings.HasPrefix(term, n) {
						entry = &builtinTable[i]
						found = true
						break
					}
				}
				if found {
					break
				}
			}
		}
	}

	cs := &CapabilitySet{
		Name:    term,
		bools:   map[string]bool{"am": true, "xenl": true, "bce": true},
		numbers: map[string]int{"cols": 80, "lines": 24, "colors": entry.colors},
		strings: map[string]string{
			"cup":   capCup,
			"clear": capClear,
			"el":    capEl,
			"ed":    capEd,
			"civis": capCivis,
			"cnorm": capCnorm,
			"smcup": capSmcup,
			"rmcup": capRmcup,
			"sgr0":  capSgr0,
			"bold":  capBold,
			"dim":   capDim,
			"smul":  capSmul,
			"blink": capBlink,
			"rev":   capRev,
			"invis": capInvis,
			"bel":   capBel,
			"kmous": capKmous,
			"cuu1":  "\x1b[A",
			"cud1":  "\n",
			"cuf1":  "\x1b[C",
			"cub1":  "\b",
			"home":  "\x1b[H",
			"cr":    "\r",
			"smkx":  "\x1b[?1h\x1b=",
			"rmkx":  "\x1b[?1l\x1b>",
		},
	}
	for k, v := range entry.strCaps {
		if v == "" {
			delete(cs.strings, k)
		} else {
			cs.strings[k] = v
		}
	}
	if entry.sync {
		cs.strings["sync"] = capSync
	}
	return cs
}
