package frame

import (
	"fmt"
	"strings"

	"bapple/internal/services"
)

// Style selects how glyphs and colors combine.
type Style int

const (
	// FgPaint colors the glyph itself.
	FgPaint Style = iota
	// BgPaint colors the cell background behind a brightness glyph.
	BgPaint
	// BgOnly paints blank cells with the pixel color.
	BgOnly
	// Mixed paints the glyph and a darkened background.
	Mixed
)

// Styles lists every style in declaration order.
var Styles = []Style{FgPaint, BgPaint, BgOnly, Mixed}

func (s Style) String() string {
	switch s {
	case FgPaint:
		return "fg-paint"
	case BgPaint:
		return "bg-paint"
	case BgOnly:
		return "bg-only"
	case Mixed:
		return "mixed"
	default:
		return fmt.Sprintf("style(%d)", int(s))
	}
}

// Valid reports whether s is one of the declared styles.
func (s Style) Valid() bool {
	return s >= FgPaint && s <= Mixed
}

// ParseStyle accepts kebab, snake, or camel spellings ("bg-only", "bg_only", "BgOnly").
func ParseStyle(value string) (Style, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	switch key {
	case "fgpaint", "fg":
		return FgPaint, nil
	case "bgpaint", "bg":
		return BgPaint, nil
	case "bgonly":
		return BgOnly, nil
	case "mixed":
		return Mixed, nil
	}
	return 0, services.Wrap(services.ErrConfiguration, "frame", "parse style",
		fmt.Sprintf("unknown style %q (want fg-paint, bg-paint, bg-only, or mixed)", value), nil)
}

// MarshalText implements encoding.TextMarshaler.
func (s Style) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid style %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Style) UnmarshalText(text []byte) error {
	parsed, err := ParseStyle(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Style) paintsForeground() bool {
	return s == FgPaint || s == Mixed
}

func (s Style) paintsBackground() bool {
	return s == BgPaint || s == BgOnly || s == Mixed
}

func (s Style) mapsBrightness() bool {
	return s != BgOnly
}
