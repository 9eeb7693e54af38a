// Package colorcomp decides when a new color escape is worth emitting.
//
// The compressor is greedy and single-pass: it compares each candidate color
// with the last emitted one and only emits when the channel-wise difference
// exceeds the threshold. Threshold 0 disables compression entirely.
package colorcomp

// RGB is a color sample without alpha.
type RGB struct {
	R, G, B uint8
}

// Scale multiplies every channel by factor, which is clamped to [0,1].
func (c RGB) Scale(factor float64) RGB {
	if factor <= 0 {
		return RGB{}
	}
	if factor >= 1 {
		return c
	}
	return RGB{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
	}
}

// Diff returns the largest absolute channel difference between a and b.
func Diff(a, b RGB) uint8 {
	return max(absDiff(a.R, b.R), absDiff(a.G, b.G), absDiff(a.B, b.B))
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// Compressor tracks the last emitted color for one color channel (foreground
// or background) within a compression scope.
type Compressor struct {
	threshold uint8
	last      RGB
	active    bool
	emitted   int
}

// New returns a compressor with no active color.
func New(threshold uint8) *Compressor {
	return &Compressor{threshold: threshold}
}

// Threshold reports the configured threshold.
func (c *Compressor) Threshold() uint8 {
	return c.threshold
}

// Next reports whether color must be emitted as a new escape. When it
// returns true the compressor records color as the active one.
func (c *Compressor) Next(color RGB) bool {
	if c.active && c.threshold > 0 && Diff(color, c.last) <= c.threshold {
		return false
	}
	c.last = color
	c.active = true
	c.emitted++
	return true
}

// Active returns the current color and whether one has been emitted.
func (c *Compressor) Active() (RGB, bool) {
	return c.last, c.active
}

// Emitted counts escapes emitted since construction.
func (c *Compressor) Emitted() int {
	return c.emitted
}

// Reset forgets the active color; the next pixel always emits.
func (c *Compressor) Reset() {
	c.active = false
	c.last = RGB{}
}
