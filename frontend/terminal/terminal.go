// Package terminal renders a pmcore Machine's GDDRAM framebuffer to a
// terminal using tcell, as a debug aid for headless runs. It is not a
// full front end (out of scope per spec §1) — no key input, no audio,
// just a view of what the SED1565 panel would show.
//
// Grounded on jeebie/backend/terminal's tcell.Screen setup and
// per-cell draw loop, collapsed from that backend's full input/debug
// overlay machinery down to a plain GDDRAM blitter: pmcore's Machine
// already exposes Framebuffer() as a flat byte slice, so there is no
// equivalent of the teacher's video.FrameBuffer/palette plumbing to
// carry over.
package terminal

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

const (
	screenWidth  = 96
	screenHeight = 64
	pageCount    = 8
	columnCount  = screenWidth
)

// onCell/offCell are the characters used for a lit and unlit pixel,
// matching the teacher's block-character approach to giving a 1bpp
// panel some visual weight in a character grid.
const (
	onCell  = '█'
	offCell = ' '
)

// Viewer draws a GDDRAM byte slice to a tcell screen. Each pixel is
// one text cell (half-block glyphs are not used, matching the
// teacher's square-cell simplicity over unicode half-block tricks), so
// the displayed grid is screenWidth x screenHeight cells.
type Viewer struct {
	screen tcell.Screen
}

// New initializes a tcell screen sized for a 96x64 GDDRAM view.
func New() (*Viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal: init screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("terminal: screen init: %w", err)
	}
	screen.SetStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorBlack))
	screen.Clear()
	return &Viewer{screen: screen}, nil
}

// Close tears down the terminal screen, restoring normal terminal mode.
func (v *Viewer) Close() {
	v.screen.Fini()
}

// PollQuit reports whether the user requested to quit (Escape, 'q',
// or Ctrl-C), draining any other pending key events.
func (v *Viewer) PollQuit() bool {
	for v.screen.HasPendingEvent() {
		ev := v.screen.PollEvent()
		switch e := ev.(type) {
		case *tcell.EventKey:
			switch e.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				return true
			case tcell.KeyRune:
				if e.Rune() == 'q' {
					return true
				}
			}
		}
	}
	return false
}

// Draw blits a GDDRAM frame (8 pages * 96 columns, LSB-top byte
// packing per spec §3) to the terminal and flushes the screen.
func (v *Viewer) Draw(gddram []uint8) {
	if len(gddram) < pageCount*columnCount {
		return
	}
	for page := 0; page < pageCount; page++ {
		for col := 0; col < columnCount; col++ {
			b := gddram[page*columnCount+col]
			for bit := 0; bit < 8; bit++ {
				ch := offCell
				if b&(1<<uint(bit)) != 0 {
					ch = onCell
				}
				v.screen.SetContent(col, page*8+bit, ch, nil, tcell.StyleDefault)
			}
		}
	}
	v.screen.Show()
}
