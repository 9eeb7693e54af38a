// Package charset maps pixel brightness onto glyphs.
//
// A Charset is an ordered run of glyphs from darkest to brightest with an
// implicit leading blank. The brightness domain [0,255] is split into
// len(charset) equal-width buckets; the final bucket absorbs the remainder.
package charset

import (
	"fmt"
	"unicode"

	"golang.org/x/text/width"

	"bapple/internal/services"
)

// Default is the glyph ramp used when none is configured.
const Default = ".:-+=#@"

// Blank is prepended to every charset for the darkest bucket.
const Blank = ' '

// MaxGlyphs bounds the charset length (blank included) so every bucket is at
// least one brightness level wide.
const MaxGlyphs = 256

// Charset is an immutable brightness ramp.
type Charset struct {
	glyphs []rune
	width  int
}

// Parse builds a charset from a darkest-to-brightest spec string. The blank
// glyph is added automatically.
func Parse(spec string) (Charset, error) {
	glyphs := make([]rune, 0, len(spec)+1)
	glyphs = append(glyphs, Blank)
	for _, r := range spec {
		if err := validateGlyph(r); err != nil {
			return Charset{}, err
		}
		glyphs = append(glyphs, r)
	}
	if len(glyphs) > MaxGlyphs {
		return Charset{}, services.Wrap(services.ErrConfiguration, "charset", "parse",
			fmt.Sprintf("charset has %d glyphs, maximum is %d", len(glyphs), MaxGlyphs), nil)
	}
	return Charset{glyphs: glyphs, width: 256 / len(glyphs)}, nil
}

// MustParse is Parse for package-level literals.
func MustParse(spec string) Charset {
	cs, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return cs
}

func validateGlyph(r rune) error {
	if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
		return services.Wrap(services.ErrConfiguration, "charset", "parse",
			fmt.Sprintf("glyph %q is not printable", r), nil)
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return services.Wrap(services.ErrConfiguration, "charset", "parse",
			fmt.Sprintf("glyph %q occupies two terminal cells", r), nil)
	}
	if unicode.In(r, unicode.Mn, unicode.Me, unicode.Cf) {
		return services.Wrap(services.ErrConfiguration, "charset", "parse",
			fmt.Sprintf("glyph %q has no width", r), nil)
	}
	return nil
}

// Len reports the number of buckets, blank included.
func (c Charset) Len() int {
	return len(c.glyphs)
}

// Bucket returns the bucket index for a brightness value.
func (c Charset) Bucket(brightness uint8) int {
	n := len(c.glyphs)
	if n <= 1 {
		return 0
	}
	idx := int(brightness) / c.width
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// GlyphFor returns the glyph representing a brightness value.
func (c Charset) GlyphFor(brightness uint8) rune {
	if len(c.glyphs) == 0 {
		return Blank
	}
	return c.glyphs[c.Bucket(brightness)]
}

// Glyphs returns a copy of the ramp, blank first.
func (c Charset) Glyphs() []rune {
	return append([]rune(nil), c.glyphs...)
}

// String returns the form accepted by Parse (without the implicit blank).
func (c Charset) String() string {
	if len(c.glyphs) <= 1 {
		return ""
	}
	return string(c.glyphs[1:])
}
