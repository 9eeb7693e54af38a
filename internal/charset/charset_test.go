package charset

import (
	"errors"
	"testing"

	"bapple/internal/services"
)

func TestParsePrependsBlank(t *testing.T) {
	cs, err := Parse(Default)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cs.Len() != len(Default)+1 {
		t.Fatalf("expected %d glyphs, got %d", len(Default)+1, cs.Len())
	}
	if cs.Glyphs()[0] != Blank {
		t.Fatalf("expected leading blank, got %q", cs.Glyphs()[0])
	}
	if cs.String() != Default {
		t.Fatalf("unexpected spec round trip: %q", cs.String())
	}
}

func TestBucketsAreMonotonic(t *testing.T) {
	specs := []string{"", "@", Default, ".'`^\",:;Il!i><~+_-?][}{1)(|\\/tfjrxnuvczXYUJCLQ0OZmwqpdbkhao*#MW&8%B@$"}
	for _, spec := range specs {
		cs := MustParse(spec)
		prev := -1
		for b := 0; b <= 255; b++ {
			idx := cs.Bucket(uint8(b))
			if idx < prev {
				t.Fatalf("spec %q: bucket(%d)=%d below bucket(%d)=%d", spec, b, idx, b-1, prev)
			}
			if idx < 0 || idx >= cs.Len() {
				t.Fatalf("spec %q: bucket(%d)=%d out of range", spec, b, idx)
			}
			prev = idx
		}
		if cs.Bucket(0) != 0 {
			t.Fatalf("spec %q: darkest value must map to the blank bucket", spec)
		}
		if cs.Bucket(255) != cs.Len()-1 {
			t.Fatalf("spec %q: brightest value must map to the last bucket, got %d", spec, cs.Bucket(255))
		}
	}
}

func TestBucketsCoverDomainExhaustively(t *testing.T) {
	cs := MustParse(Default)
	seen := make(map[int]int)
	for b := 0; b <= 255; b++ {
		seen[cs.Bucket(uint8(b))]++
	}
	if len(seen) != cs.Len() {
		t.Fatalf("expected every bucket to be hit, got %v", seen)
	}
	width := 256 / cs.Len()
	for i := 0; i < cs.Len()-1; i++ {
		if seen[i] != width {
			t.Fatalf("bucket %d has width %d, want %d", i, seen[i], width)
		}
	}
	if last := seen[cs.Len()-1]; last < width {
		t.Fatalf("final bucket should absorb the remainder, got width %d", last)
	}
}

func TestSingleGlyphCharset(t *testing.T) {
	cs := MustParse("")
	for _, b := range []uint8{0, 1, 128, 255} {
		if got := cs.GlyphFor(b); got != Blank {
			t.Fatalf("GlyphFor(%d) = %q, want blank", b, got)
		}
	}
}

func TestGlyphForDefaultRamp(t *testing.T) {
	cs := MustParse(Default)
	if got := cs.GlyphFor(0); got != ' ' {
		t.Fatalf("GlyphFor(0) = %q", got)
	}
	if got := cs.GlyphFor(255); got != '@' {
		t.Fatalf("GlyphFor(255) = %q", got)
	}
	if got := cs.GlyphFor(40); got != '.' {
		t.Fatalf("GlyphFor(40) = %q", got)
	}
}

func TestParseRejectsInvalidGlyphs(t *testing.T) {
	for _, spec := range []string{"ab\tc", "全角", "a\u0301", "\x00"} {
		_, err := Parse(spec)
		if err == nil {
			t.Fatalf("expected error for %q", spec)
		}
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("expected configuration error for %q, got %v", spec, err)
		}
	}
}

func TestParseRejectsOversizedCharset(t *testing.T) {
	runes := make([]rune, MaxGlyphs)
	for i := range runes {
		runes[i] = 'a'
	}
	if _, err := Parse(string(runes)); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
