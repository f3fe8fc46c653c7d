package weft

import (
	"bytes"
	"fmt"
	"strconv"
)

// The evaluator below expands parametrized capability strings (the
// historical tparm). It is a small stack machine: literal bytes pass
// through, %-escapes push/pop a union stack of signed integers and
// strings, with 26 static variables persisting on the CapabilitySet and
// 26 dynamic variables scoped to one call.

type tpValue struct {
	i     int64
	s     string
	isStr bool
}

type tpStack []tpValue

func (st tpStack) pushInt(i int64) tpStack {
	return append(st, tpValue{i: i})
}

func (st tpStack) pushStr(s string) tpStack {
	return append(st, tpValue{s: s, isStr: true})
}

func (st tpStack) pushBool(b bool) tpStack {
	if b {
		return st.pushInt(1)
	}
	return st.pushInt(0)
}

func (st tpStack) pop() (tpValue, tpStack) {
	if len(st) == 0 {
		return tpValue{}, st
	}
	return st[len(st)-1], st[:len(st)-1]
}

func (st tpStack) popInt() (int64, tpStack) {
	v, st := st.pop()
	if v.isStr {
		n, _ := strconv.ParseInt(v.s, 10, 64)
		return n, st
	}
	return v.i, st
}

func (st tpStack) popStr() (string, tpStack) {
	v, st := st.pop()
	if v.isStr {
		return v.s, st
	}
	return strconv.FormatInt(v.i, 10), st
}

// Eval expands the named string capability with the given parameters.
// Missing capabilities expand to "".
func (cs *CapabilitySet) Eval(name string, params ...any) string {
	s, ok := cs.strings[name]
	if !ok {
		return ""
	}
	return cs.EvalString(s, params...)
}

// EvalString expands a raw capability string with up to 9 integer or
// string parameters. The expansion never fails: malformed escapes are
// skipped, arithmetic on short stacks operates on zeroes, and division
// or modulo by zero pushes 0.
func (cs *CapabilitySet) EvalString(s string, params ...any) string {
	var (
		stk   tpStack
		out   bytes.Buffer
		dvars [26]string
		ps    [9]tpValue
	)
	for i := 0; i < len(params) && i < 9; i++ {
		switch v := params[i].(type) {
		case int:
			ps[i] = tpValue{i: int64(v)}
		case int64:
			ps[i] = tpValue{i: v}
		case string:
			ps[i] = tpValue{s: v, isStr: true}
		}
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	pos := 0
	next := func() (byte, bool) {
		if pos >= len(s) {
			return 0, false
		}
		ch := s[pos]
		pos++
		return ch, true
	}

	// skipBranch consumes input until the %e or %; binding to the current
	// %? block. skipElse controls whether %e terminates the skip.
	skipBranch := func(skipElse bool) {
		nest := 0
		for {
			ch, ok := next()
			if !ok {
				return
			}
			if ch != '%' {
				continue
			}
			ch, ok = next()
			if !ok {
				return
			}
			switch ch {
			case '?':
				nest++
			case ';':
				if nest == 0 {
					return
				}
				nest--
			case 'e':
				if nest == 0 && skipElse {
					return
				}
			}
		}
	}

	var (
		ai, bi int64
		a, b   string
		v      tpValue
	)

	for {
		ch, ok := next()
		if !ok {
			break
		}
		if ch != '%' {
			out.WriteByte(ch)
			continue
		}
		ch, ok = next()
		if !ok {
			break
		}

		switch ch {
		case '%':
			out.WriteByte('%')

		case 'i': // 1-based coordinates: bump the first two parameters
			ps[0].i++
			ps[1].i++

		case 'd':
			ai, stk = stk.popInt()
			out.WriteString(strconv.FormatInt(ai, 10))

		case 's':
			a, stk = stk.popStr()
			out.WriteString(a)

		case 'c':
			v, stk = stk.pop()
			if v.isStr && len(v.s) > 0 {
				out.WriteByte(v.s[0])
			} else if !v.isStr {
				out.WriteByte(byte(v.i))
			}

		case ':', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', 'x', 'X', 'o':
			// printf-style width/precision/flag modifiers. A leading ':'
			// shields '+' and '-' from being read as operators.
			f := "%"
			if ch == ':' {
				ch, ok = next()
				if !ok {
					break
				}
			}
			for ch == '+' || ch == '-' || ch == '#' || ch == ' ' {
				f += string(ch)
				ch, ok = next()
				if !ok {
					break
				}
			}
			for (ch >= '0' && ch <= '9') || ch == '.' {
				f += string(ch)
				ch, ok = next()
				if !ok {
					break
				}
			}
			switch ch {
			case 'd', 'x', 'X', 'o':
				ai, stk = stk.popInt()
				fmt.Fprintf(&out, f+string(ch), ai)
			case 'c':
				v, stk = stk.pop()
				if v.isStr && len(v.s) > 0 {
					fmt.Fprintf(&out, f+"c", v.s[0])
				} else if !v.isStr {
					fmt.Fprintf(&out, f+"c", byte(v.i))
				}
			case 's':
				a, stk = stk.popStr()
				fmt.Fprintf(&out, f+"s", a)
			}

		case 'p': // push parameter %p1..%p9
			ch, ok = next()
			if !ok {
				break
			}
			if n := int(ch - '1'); n >= 0 && n < 9 {
				stk = append(stk, ps[n])
			} else {
				stk = stk.pushInt(0)
			}

		case 'P': // pop and store into a variable
			ch, ok = next()
			if !ok {
				break
			}
			a, stk = stk.popStr()
			if ch >= 'A' && ch <= 'Z' {
				cs.svars[ch-'A'] = a
			} else if ch >= 'a' && ch <= 'z' {
				dvars[ch-'a'] = a
			}

		case 'g': // push a variable (0/"" if unset)
			ch, ok = next()
			if !ok {
				break
			}
			if ch >= 'A' && ch <= 'Z' {
				stk = stk.pushStr(cs.svars[ch-'A'])
			} else if ch >= 'a' && ch <= 'z' {
				stk = stk.pushStr(dvars[ch-'a'])
			}

		case '\'': // push character constant
			ch, ok = next()
			if !ok {
				break
			}
			stk = stk.pushInt(int64(ch))
			next() // closing quote

		case '{': // push integer constant
			var n int64
			neg := false
			ch, ok = next()
			if ok && ch == '-' {
				neg = true
				ch, ok = next()
			}
			for ok && ch >= '0' && ch <= '9' {
				n = n*10 + int64(ch-'0')
				ch, ok = next()
			}
			if neg {
				n = -n
			}
			stk = stk.pushInt(n) // ch holds the closing '}'

		case 'l': // push strlen(pop)
			a, stk = stk.popStr()
			stk = stk.pushInt(int64(len(a)))

		case '+':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushInt(ai + bi)

		case '-':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushInt(ai - bi)

		case '*':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushInt(ai * bi)

		case '/':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			if bi == 0 {
				stk = stk.pushInt(0)
			} else {
				stk = stk.pushInt(ai / bi)
			}

		case 'm':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			if bi == 0 {
				stk = stk.pushInt(0)
			} else {
				stk = stk.pushInt(ai % bi)
			}

		case '&':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushInt(ai & bi)

		case '|':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushInt(ai | bi)

		case '^':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushInt(ai ^ bi)

		case '~':
			ai, stk = stk.popInt()
			stk = stk.pushInt(^ai)

		case 'A':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushBool(ai != 0 && bi != 0)

		case 'O':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushBool(ai != 0 || bi != 0)

		case '!':
			ai, stk = stk.popInt()
			stk = stk.pushBool(ai == 0)

		case '=':
			b, stk = stk.popStr()
			a, stk = stk.popStr()
			stk = stk.pushBool(a == b)

		case '>':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushBool(ai > bi)

		case '<':
			bi, stk = stk.popInt()
			ai, stk = stk.popInt()
			stk = stk.pushBool(ai < bi)

		case '?': // start conditional; the work happens at %t

		case 't': // then: if popped value is false, skip to %e or %;
			ai, stk = stk.popInt()
			if ai == 0 {
				skipBranch(true)
			}

		case 'e':
			// Reached only after a taken %t branch; skip the else part
			// up to the %; closing the nearest unclosed %?.
			skipBranch(false)

		case ';': // end conditional

		default:
			// Unknown escape: drop it rather than abort mid-capability.
		}
	}

	return out.String()
}
