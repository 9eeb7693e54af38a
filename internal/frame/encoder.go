// Package frame turns RGBA pixel grids into styled ASCII frames.
//
// The encoder maps each pixel's luma onto a glyph from the configured charset
// and, when colorized, attaches foreground and/or background color escapes
// according to the Style. Color escapes are thinned by a colorcomp.Compressor
// per painted channel. Compression state is frame-scoped unless RowScoped is
// set, in which case state resets and an SGR reset is written on every row.
package frame

import (
	"fmt"
	"image"

	"bapple/internal/charset"
	"bapple/internal/colorcomp"
	"bapple/internal/services"
)

// DefaultBackgroundBrightness is how much the Mixed style darkens backgrounds.
const DefaultBackgroundBrightness = 0.2

// Options configures an Encoder.
type Options struct {
	Style    Style
	Charset  charset.Charset
	Colorize bool
	// BackgroundBrightness darkens the Mixed background: the background is
	// the pixel color scaled by (1 - BackgroundBrightness). Clamped to [0,1].
	BackgroundBrightness float64
	RowScoped            bool
}

// Encoder is a reusable, goroutine-safe frame encoder. Each Encode call owns
// its own compression state.
type Encoder struct {
	opts    Options
	bgScale float64
}

// NewEncoder validates opts and returns an encoder.
func NewEncoder(opts Options) (*Encoder, error) {
	if !opts.Style.Valid() {
		return nil, services.Wrap(services.ErrConfiguration, "frame", "new encoder",
			fmt.Sprintf("invalid style %d", int(opts.Style)), nil)
	}
	if opts.Style == BgOnly && !opts.Colorize {
		return nil, services.Wrap(services.ErrConfiguration, "frame", "new encoder",
			"bg-only style requires colorized output", nil)
	}
	if opts.Charset.Len() == 0 {
		opts.Charset = charset.MustParse(charset.Default)
	}
	opts.BackgroundBrightness = clamp01(opts.BackgroundBrightness)
	return &Encoder{opts: opts, bgScale: 1 - opts.BackgroundBrightness}, nil
}

// Options returns the effective options.
func (e *Encoder) Options() Options {
	return e.opts
}

// Encode converts grid into an encoded frame using the given compression
// threshold. Pixels are read as premultiplied RGBA, i.e. composited over black.
func (e *Encoder) Encode(grid *image.RGBA, threshold uint8) *Encoded {
	bounds := grid.Bounds()
	out := &Encoded{
		Rows:      make([][]Segment, 0, bounds.Dy()),
		Threshold: threshold,
		Colorized: e.opts.Colorize,
		RowScoped: e.opts.RowScoped,
	}

	style := e.opts.Style
	var fg, bg *colorcomp.Compressor
	if e.opts.Colorize {
		if style.paintsForeground() {
			fg = colorcomp.New(threshold)
		}
		if style.paintsBackground() {
			bg = colorcomp.New(threshold)
		}
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		if e.opts.RowScoped {
			resetAll(fg, bg)
		}
		row := make([]Segment, 0, bounds.Dx())
		offset := grid.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := colorcomp.RGB{R: grid.Pix[offset], G: grid.Pix[offset+1], B: grid.Pix[offset+2]}
			offset += 4

			seg := Segment{Glyph: charset.Blank}
			if style.mapsBrightness() {
				seg.Glyph = e.opts.Charset.GlyphFor(Luma(px))
			}
			if fg != nil && fg.Next(px) {
				seg.Fg, seg.HasFg = px, true
				out.FgEscapes++
			}
			if bg != nil {
				bgColor := px
				if style == Mixed {
					bgColor = px.Scale(e.bgScale)
				}
				if bg.Next(bgColor) {
					seg.Bg, seg.HasBg = bgColor, true
					out.BgEscapes++
				}
			}
			row = append(row, seg)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Luma returns the Rec. 601 weighted brightness of c.
func Luma(c colorcomp.RGB) uint8 {
	return uint8((299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B) + 500) / 1000)
}

func resetAll(compressors ...*colorcomp.Compressor) {
	for _, c := range compressors {
		if c != nil {
			c.Reset()
		}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
