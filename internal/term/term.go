// Package term holds terminal control sequences and size detection.
package term

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	xterm "golang.org/x/term"
)

// Control sequences written around frames.
const (
	Reset       = "\x1b[0m"
	HideCursor  = "\x1b[?25l"
	ShowCursor  = "\x1b[?25h"
	CursorHome  = "\x1b[H"
	ClearScreen = "\x1b[2J"
)

// Size is a terminal size in character cells.
type Size struct {
	Cols int
	Rows int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Cols, s.Rows)
}

// Detect returns the size of the first terminal among stdout, stderr, and
// stdin.
func Detect() (Size, error) {
	var lastErr error
	for _, f := range []*os.File{os.Stdout, os.Stderr, os.Stdin} {
		if !IsTerminal(f) {
			continue
		}
		cols, rows, err := xterm.GetSize(int(f.Fd()))
		if err != nil {
			lastErr = err
			continue
		}
		if cols > 0 && rows > 0 {
			return Size{Cols: cols, Rows: rows}, nil
		}
	}
	if lastErr != nil {
		return Size{}, fmt.Errorf("detect terminal size: %w", lastErr)
	}
	return Size{}, fmt.Errorf("detect terminal size: no terminal attached")
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// FitFrame returns the frame grid for a terminal. One row is kept free so
// the last frame line does not scroll the screen.
func FitFrame(s Size) (width, height int) {
	height = s.Rows - 1
	if height < 1 {
		height = 1
	}
	return max(s.Cols, 1), height
}
