// Command weft-demo draws a small interactive screen exercising the cell
// buffer, diff renderer, input decoder and event loop. Arrow keys move
// the marker, 't' stops the ticker, 'q' or Ctrl+C quits.
package main

import (
	"fmt"
	"os"
	"time"

	"weft"
)

func main() {
	term, err := weft.NewTerminal(weft.WithMouse())
	if err != nil {
		fmt.Fprintln(os.Stderr, "weft-demo:", err)
		os.Exit(1)
	}
	defer term.Close()

	loop := weft.NewLoop()
	loop.AddSource(weft.NewInputSource(term.InputFD()))
	loop.AddSource(weft.NewResizeSource(term))
	ticker := weft.NewTimerSource(100 * time.Millisecond)
	loop.AddSource(ticker)
	loop.Attach(term)
	if err := loop.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "weft-demo:", err)
		return
	}
	defer loop.Stop()

	var (
		x, y    = 2, 2
		frame   int64
		status  = "ready"
		accent  = weft.DefaultStyle().Foreground(weft.BrightCyan).Bold()
		muted   = weft.DefaultStyle().Foreground(weft.BrightBlack)
		marker  = weft.DefaultStyle().Foreground(weft.Black).Background(weft.BrightYellow)
		ticking = true
	)

	draw := func() {
		buf := term.Buffer()
		w, h := buf.Size()
		buf.Clear()
		buf.HLine(0, 0, w, '─', muted)
		buf.WriteString(2, 0, " weft demo ", accent)
		buf.WriteString(0, h-1, fmt.Sprintf("frame %d  %s  (arrows move, t stops ticks, q quits)", frame, status), muted)
		buf.SetCell(x, y, '█', marker)
		if err := term.Render(); err != nil {
			status = err.Error()
		}
	}

	draw()
	for {
		ev, ok := loop.WaitForEvent(time.Second)
		if !ok {
			continue
		}
		switch e := ev.(type) {
		case weft.KeyEvent:
			switch {
			case e.Key == weft.KeyUp:
				y--
			case e.Key == weft.KeyDown:
				y++
			case e.Key == weft.KeyLeft:
				x--
			case e.Key == weft.KeyRight:
				x++
			case e.Key == weft.KeyRune && e.Rune == 't':
				ticking = !ticking
				if !ticking {
					ticker.Stop()
				}
			case e.Key == weft.KeyRune && e.Rune == 'q',
				e.Key == weft.KeyRune && e.Rune == 'c' && e.Mod.Has(weft.ModCtrl),
				e.Key == weft.KeyEscape:
				return
			}
			draw()
		case weft.MouseEvent:
			if e.Pressed {
				x, y = e.X-1, e.Y-1
				status = fmt.Sprintf("mouse %s at %d,%d", e.Button, e.X, e.Y)
				draw()
			}
		case weft.ResizeEvent:
			status = fmt.Sprintf("resized %dx%d", e.Width, e.Height)
			draw()
		case weft.TickEvent:
			if ticking {
				frame = e.Frame
				draw()
			}
		case weft.ModeChangeEvent:
			status = "mode change"
			draw()
		}
	}
}
