package frame

import (
	"strconv"
	"unicode/utf8"

	"bapple/internal/colorcomp"
)

// ANSI sequences written into encoded frames.
const (
	fgPrefix = "\x1b[38;2;"
	bgPrefix = "\x1b[48;2;"
	Reset    = "\x1b[0m"
)

// Segment is one rendered cell. A color flag that is false means the cell
// reuses whatever color is active in the terminal.
type Segment struct {
	Glyph rune
	Fg    colorcomp.RGB
	HasFg bool
	Bg    colorcomp.RGB
	HasBg bool
}

// Encoded is an encoded frame: rows of segments plus the reset policy used
// when rendering to bytes.
type Encoded struct {
	Rows       [][]Segment
	Threshold  uint8
	Colorized  bool
	RowScoped  bool
	FgEscapes  int
	BgEscapes  int
	rendered   []byte
	renderDone bool
}

// Escapes counts every color escape in the frame.
func (e *Encoded) Escapes() int {
	return e.FgEscapes + e.BgEscapes
}

// Bytes renders the frame as terminal text. Rows are separated by newlines
// without a trailing newline. The result is cached.
func (e *Encoded) Bytes() []byte {
	if e.renderDone {
		return e.rendered
	}
	buf := make([]byte, 0, e.estimate())
	for y, row := range e.Rows {
		if y > 0 {
			buf = append(buf, '\n')
		}
		for _, seg := range row {
			if seg.HasFg {
				buf = appendEscape(buf, fgPrefix, seg.Fg)
			}
			if seg.HasBg {
				buf = appendEscape(buf, bgPrefix, seg.Bg)
			}
			buf = utf8.AppendRune(buf, seg.Glyph)
		}
		if e.Colorized && e.RowScoped {
			buf = append(buf, Reset...)
		}
	}
	if e.Colorized && !e.RowScoped && len(e.Rows) > 0 {
		buf = append(buf, Reset...)
	}
	e.rendered = buf
	e.renderDone = true
	return buf
}

// Size is the encoded byte length the size controller budgets against.
func (e *Encoded) Size() int {
	return len(e.Bytes())
}

// String renders the frame as text.
func (e *Encoded) String() string {
	return string(e.Bytes())
}

func (e *Encoded) estimate() int {
	cells := 0
	for _, row := range e.Rows {
		cells += len(row) + 1
	}
	return cells + e.Escapes()*len("\x1b[38;2;255;255;255m") + len(Reset)*(len(e.Rows)+1)
}

func appendEscape(buf []byte, prefix string, c colorcomp.RGB) []byte {
	buf = append(buf, prefix...)
	buf = strconv.AppendUint(buf, uint64(c.R), 10)
	buf = append(buf, ';')
	buf = strconv.AppendUint(buf, uint64(c.G), 10)
	buf = append(buf, ';')
	buf = strconv.AppendUint(buf, uint64(c.B), 10)
	return append(buf, 'm')
}
