package budget

import (
	"image"
	"image/color"
	"testing"

	"bapple/internal/frame"
)

type countingEncoder struct {
	inner *frame.Encoder
	calls map[uint8]int
}

func (c *countingEncoder) Encode(grid *image.RGBA, threshold uint8) *frame.Encoded {
	c.calls[threshold]++
	return c.inner.Encode(grid, threshold)
}

func newCountingEncoder(t *testing.T) *countingEncoder {
	t.Helper()
	enc, err := frame.NewEncoder(frame.Options{Style: frame.FgPaint, Colorize: true})
	if err != nil {
		t.Fatalf("NewEncoder returned error: %v", err)
	}
	return &countingEncoder{inner: enc, calls: make(map[uint8]int)}
}

func ramp(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(100 + (y*w+x)%128)
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestDisabledUsesBaseThreshold(t *testing.T) {
	enc := newCountingEncoder(t)
	ctrl := Controller{CeilingKiB: 0.001, Base: 7, Enabled: false}
	res := ctrl.Encode(enc, ramp(32, 8))
	if res.Threshold != 7 || res.Attempts != 1 {
		t.Fatalf("expected single encode at base, got threshold=%d attempts=%d", res.Threshold, res.Attempts)
	}
	if res.WithinBudget {
		t.Fatalf("tiny ceiling should be reported as exceeded")
	}
}

func TestFitsAtBase(t *testing.T) {
	enc := newCountingEncoder(t)
	ctrl := Controller{CeilingKiB: 1024, Base: 3, Enabled: true}
	res := ctrl.Encode(enc, ramp(32, 8))
	if res.Threshold != 3 || res.Attempts != 1 || !res.WithinBudget {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUnreachableCeilingDegradesGracefully(t *testing.T) {
	enc := newCountingEncoder(t)
	ctrl := Controller{CeilingKiB: 0.01, Base: 0, Enabled: true}
	res := ctrl.Encode(enc, ramp(32, 8))
	if res.WithinBudget {
		t.Fatalf("expected over budget result")
	}
	if res.Threshold != MaxThreshold {
		t.Fatalf("expected strongest threshold, got %d", res.Threshold)
	}
	if res.Attempts != 2 {
		t.Fatalf("expected base and max attempts only, got %d", res.Attempts)
	}
	if res.Frame == nil || res.Size != res.Frame.Size() {
		t.Fatalf("result frame does not match reported size")
	}
}

func TestSearchFindsSmallestFittingThreshold(t *testing.T) {
	grid := ramp(32, 8)
	direct := newCountingEncoder(t)
	sizes := make([]int, 256)
	for th := 0; th <= 255; th++ {
		sizes[th] = direct.inner.Encode(grid, uint8(th)).Size()
	}

	for _, target := range []int{1, 4, 17, 60, 127, 200} {
		ceiling := sizes[target]
		want := 0
		for sizes[want] > ceiling {
			want++
		}
		enc := newCountingEncoder(t)
		ctrl := Controller{CeilingKiB: float64(ceiling) / 1024, Base: 0, Enabled: true}
		res := ctrl.Encode(enc, grid)
		if !res.WithinBudget {
			t.Fatalf("ceiling %d: expected fit", ceiling)
		}
		if int(res.Threshold) != want {
			t.Fatalf("ceiling %d: threshold %d, want %d", ceiling, res.Threshold, want)
		}
		if res.Size > ceiling {
			t.Fatalf("ceiling %d: accepted size %d", ceiling, res.Size)
		}
		if res.Attempts > 10 {
			t.Fatalf("ceiling %d: too many attempts %d", ceiling, res.Attempts)
		}
		for th, n := range enc.calls {
			if n > 1 {
				t.Fatalf("threshold %d encoded %d times", th, n)
			}
		}
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	grid := ramp(32, 8)
	ctrl := Controller{CeilingKiB: 2, Base: 2, Enabled: true}
	first := ctrl.Encode(newCountingEncoder(t), grid)
	second := ctrl.Encode(newCountingEncoder(t), grid)
	if first.Threshold != second.Threshold || first.Size != second.Size {
		t.Fatalf("non-deterministic search: %+v vs %+v", first, second)
	}
}

// steppedEncoder returns frames whose size depends on the threshold through
// an arbitrary, non-monotone table.
type steppedEncoder struct {
	size func(threshold uint8) int
}

func (s steppedEncoder) Encode(_ *image.RGBA, threshold uint8) *frame.Encoded {
	row := make([]frame.Segment, s.size(threshold))
	for i := range row {
		row[i].Glyph = '#'
	}
	return &frame.Encoded{Rows: [][]frame.Segment{row}, Threshold: threshold}
}

func TestSearchFitsWhenSizeIsNotMonotone(t *testing.T) {
	enc := steppedEncoder{size: func(th uint8) int {
		switch {
		case th < 40:
			return 100
		case th < 60:
			return 10
		case th < 128:
			return 50
		default:
			return 12
		}
	}}
	ctrl := Controller{CeilingKiB: 20.0 / 1024, Base: 0, Enabled: true}
	res := ctrl.Encode(enc, ramp(4, 4))
	if !res.WithinBudget || res.Size > 20 {
		t.Fatalf("expected a fitting frame, got %+v", res)
	}
	if res.Frame.Threshold != res.Threshold {
		t.Fatalf("frame threshold %d does not match result %d", res.Frame.Threshold, res.Threshold)
	}
}
