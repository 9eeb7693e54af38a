// Package imageio decodes source images and resamples them onto the frame grid.
package imageio

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/gift"

	"bapple/internal/services"
)

// Filter names a resampling filter.
type Filter string

const (
	Nearest Filter = "nearest"
	Linear  Filter = "linear"
	Cubic   Filter = "cubic"
	Lanczos Filter = "lanczos"
)

// ParseFilter validates a configured filter name. Empty means nearest.
func ParseFilter(value string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return Nearest, nil
	case Nearest, Linear, Cubic, Lanczos:
		return f, nil
	}
	return "", services.Wrap(services.ErrConfiguration, "imageio", "parse filter",
		fmt.Sprintf("unknown filter %q (want nearest, linear, cubic, or lanczos)", value), nil)
}

func (f Filter) resampling() gift.Resampling {
	switch f {
	case Linear:
		return gift.LinearResampling
	case Cubic:
		return gift.CubicResampling
	case Lanczos:
		return gift.LanczosResampling
	default:
		return gift.NearestNeighborResampling
	}
}

// Size is a frame grid in cells.
type Size struct {
	Width  int
	Height int
}

// Auto reports whether the size should come from the terminal.
func (s Size) Auto() bool {
	return s.Width == 0 && s.Height == 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses "WxH". "0x0" requests the terminal size.
func ParseSize(value string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(value)), "x")
	if !ok {
		return Size{}, sizeError(value)
	}
	width, errW := strconv.Atoi(strings.TrimSpace(w))
	height, errH := strconv.Atoi(strings.TrimSpace(h))
	if errW != nil || errH != nil || width < 0 || height < 0 {
		return Size{}, sizeError(value)
	}
	size := Size{Width: width, Height: height}
	if !size.Auto() && (width == 0 || height == 0) {
		return Size{}, sizeError(value)
	}
	return size, nil
}

func sizeError(value string) error {
	return services.Wrap(services.ErrConfiguration, "imageio", "parse size",
		fmt.Sprintf("invalid frame size %q (want WxH, or 0x0 for terminal size)", value), nil)
}

// Resizer maps source images onto an exact grid.
type Resizer struct {
	size Size
	g    *gift.GIFT
}

// NewResizer builds a resizer. A gamma of 0 or 1 leaves brightness alone;
// values above 1 brighten.
func NewResizer(size Size, filter Filter, gamma float64) (*Resizer, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "imageio", "new resizer",
			fmt.Sprintf("frame size %s must be positive", size), nil)
	}
	if gamma < 0 {
		return nil, services.Wrap(services.ErrConfiguration, "imageio", "new resizer",
			fmt.Sprintf("gamma must not be negative, got %v", gamma), nil)
	}
	filters := []gift.Filter{gift.Resize(size.Width, size.Height, filter.resampling())}
	if gamma > 0 && gamma != 1 {
		filters = append(filters, gift.Gamma(float32(gamma)))
	}
	return &Resizer{size: size, g: gift.New(filters...)}, nil
}

// Size returns the target grid.
func (r *Resizer) Size() Size {
	return r.size
}

// Resize draws src onto a fresh grid. Safe for concurrent use.
func (r *Resizer) Resize(src image.Image) *image.RGBA {
	dst := image.NewRGBA(r.g.Bounds(src.Bounds()))
	r.g.Draw(dst, src)
	return dst
}

// Decode reads a PNG, JPEG, or GIF image.
func Decode(rd io.Reader) (image.Image, error) {
	img, _, err := image.Decode(rd)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DecodeFile reads an image from disk.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ToRGBA converts img to RGBA without resampling.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}
