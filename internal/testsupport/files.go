package testsupport

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// Gradient returns a w×h image whose red channel ramps left to right and
// blue channel top to bottom; shift offsets the ramp so consecutive frames
// differ.
func Gradient(w, h, shift int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x*255/max(w-1, 1) + shift) % 256),
				G: uint8((shift * 17) % 256),
				B: uint8(y * 255 / max(h-1, 1)),
				A: 0xff,
			})
		}
	}
	return img
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(t testing.TB, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// WriteFrames writes n gradient PNGs named like ffmpeg output into dir.
func WriteFrames(t testing.TB, dir string, n, w, h int) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range n {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%06d.png", i+1))
		WritePNG(t, paths[i], Gradient(w, h, i*8))
	}
	return paths
}
