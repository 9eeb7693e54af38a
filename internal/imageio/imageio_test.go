package imageio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"bapple/internal/services"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want Size
		ok   bool
	}{
		{"80x24", Size{80, 24}, true},
		{" 120X40 ", Size{120, 40}, true},
		{"0x0", Size{}, true},
		{"80x0", Size{}, false},
		{"80", Size{}, false},
		{"-1x4", Size{}, false},
		{"axb", Size{}, false},
	}
	for _, tc := range tests {
		got, err := ParseSize(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseSize(%q) = %v, %v", tc.in, got, err)
			}
			continue
		}
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("ParseSize(%q) expected configuration error, got %v", tc.in, err)
		}
	}
	if !(Size{}).Auto() {
		t.Fatalf("0x0 should be auto")
	}
}

func TestParseFilter(t *testing.T) {
	for _, name := range []string{"", "nearest", "Linear", "cubic", "LANCZOS"} {
		if _, err := ParseFilter(name); err != nil {
			t.Fatalf("ParseFilter(%q) returned error: %v", name, err)
		}
	}
	if _, err := ParseFilter("bicubic-ish"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResizeProducesExactGrid(t *testing.T) {
	for _, f := range []Filter{Nearest, Linear, Cubic, Lanczos} {
		r, err := NewResizer(Size{Width: 7, Height: 3}, f, 1)
		if err != nil {
			t.Fatalf("NewResizer(%s) returned error: %v", f, err)
		}
		out := r.Resize(checker(64, 48))
		if out.Bounds().Dx() != 7 || out.Bounds().Dy() != 3 {
			t.Fatalf("%s: unexpected bounds %v", f, out.Bounds())
		}
	}
}

func TestGammaBrightens(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 64
	}
	plain, _ := NewResizer(Size{Width: 2, Height: 2}, Nearest, 1)
	boosted, _ := NewResizer(Size{Width: 2, Height: 2}, Nearest, 2)
	a := plain.Resize(src).Pix[0]
	b := boosted.Resize(src).Pix[0]
	if b <= a {
		t.Fatalf("gamma 2 should brighten: %d vs %d", b, a)
	}
}

func TestNewResizerRejectsInvalid(t *testing.T) {
	if _, err := NewResizer(Size{}, Nearest, 1); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty size, got %v", err)
	}
	if _, err := NewResizer(Size{Width: 1, Height: 1}, Nearest, -1); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for negative gamma, got %v", err)
	}
}

func TestDecodeFile(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, checker(3, 2)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "f.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	img, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile returned error: %v", err)
	}
	rgba := ToRGBA(img)
	if rgba.Bounds().Dx() != 3 || rgba.RGBAAt(0, 0).R != 255 || rgba.RGBAAt(1, 0).R != 0 {
		t.Fatalf("unexpected decode result")
	}
	if _, err := Decode(bytes.NewReader([]byte("nope"))); err == nil {
		t.Fatalf("expected decode error")
	}
}
