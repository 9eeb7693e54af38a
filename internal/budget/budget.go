// Package budget keeps encoded frames under a per-frame byte ceiling by
// raising the color compression threshold only as far as needed.
package budget

import (
	"image"

	"bapple/internal/frame"
)

// MaxThreshold is the strongest compression threshold.
const MaxThreshold = 255

// FrameEncoder is the subset of frame.Encoder the controller drives.
type FrameEncoder interface {
	Encode(grid *image.RGBA, threshold uint8) *frame.Encoded
}

// Controller picks a compression threshold per frame.
type Controller struct {
	// CeilingKiB is the per-frame budget in KiB. Zero or less disables the search.
	CeilingKiB float64
	// Base is the threshold tried first and used when the search is disabled.
	Base    uint8
	Enabled bool
}

// Result describes the encoding the controller settled on.
type Result struct {
	Frame        *frame.Encoded
	Threshold    uint8
	Size         int
	Attempts     int
	WithinBudget bool
}

// Ceiling returns the budget in bytes, or 0 when unbounded.
func (c Controller) Ceiling() int {
	if c.CeilingKiB <= 0 {
		return 0
	}
	return int(c.CeilingKiB * 1024)
}

// Active reports whether frames are searched against a ceiling.
func (c Controller) Active() bool {
	return c.Enabled && c.Ceiling() > 0
}

// Encode encodes grid, searching for the smallest threshold in [Base, 255]
// whose output fits the ceiling. When even 255 does not fit, the smallest
// encoding seen is returned with WithinBudget unset; exceeding the ceiling is
// never an error.
func (c Controller) Encode(enc FrameEncoder, grid *image.RGBA) Result {
	s := search{enc: enc, grid: grid, ceiling: c.Ceiling(), memo: make(map[uint8]*frame.Encoded, 10)}

	base := s.at(c.Base)
	if !c.Active() || s.fits(base) {
		return s.result(c.Base, base)
	}
	if c.Base == MaxThreshold {
		return s.result(c.Base, base)
	}

	top := s.at(MaxThreshold)
	if !s.fits(top) {
		if top.Size() <= base.Size() {
			return s.result(MaxThreshold, top)
		}
		return s.result(c.Base, base)
	}

	// Invariant: lo does not fit, hi fits.
	lo, hi := int(c.Base), MaxThreshold
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if s.fits(s.at(uint8(mid))) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return s.result(uint8(hi), s.at(uint8(hi)))
}

type search struct {
	enc      FrameEncoder
	grid     *image.RGBA
	ceiling  int
	memo     map[uint8]*frame.Encoded
	attempts int
}

func (s *search) at(threshold uint8) *frame.Encoded {
	if encoded, ok := s.memo[threshold]; ok {
		return encoded
	}
	encoded := s.enc.Encode(s.grid, threshold)
	s.memo[threshold] = encoded
	s.attempts++
	return encoded
}

func (s *search) fits(encoded *frame.Encoded) bool {
	return s.ceiling <= 0 || encoded.Size() <= s.ceiling
}

func (s *search) result(threshold uint8, encoded *frame.Encoded) Result {
	return Result{
		Frame:        encoded,
		Threshold:    threshold,
		Size:         encoded.Size(),
		Attempts:     s.attempts,
		WithinBudget: s.fits(encoded),
	}
}
