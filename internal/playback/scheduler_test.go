package playback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"bapple/internal/archive"
	"bapple/internal/services"
	"bapple/internal/term"
)

type fakeClock struct {
	now     time.Time
	sleeps  []time.Duration
	onSleep func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep()
	}
	return ctx.Err()
}

type memorySource struct {
	meta    archive.Metadata
	frames  [][]byte
	damaged map[int]bool
	pos     int
	rewinds int
}

func (m *memorySource) Metadata() archive.Metadata { return m.meta }

func (m *memorySource) Next() (archive.Frame, error) {
	if m.pos >= len(m.frames) {
		return archive.Frame{}, io.EOF
	}
	i := m.pos
	m.pos++
	if m.damaged[i] {
		return archive.Frame{}, &archive.FrameDecodeError{Index: i, Reason: "decompress"}
	}
	return archive.Frame{Index: i, Data: m.frames[i]}, nil
}

func (m *memorySource) Rewind() error {
	m.pos = 0
	m.rewinds++
	return nil
}

func newSource(n int, fps float64) *memorySource {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = []byte{'F', byte('0' + i)}
	}
	return &memorySource{meta: archive.Metadata{Version: "1", FPS: fps, FrameCount: n}, frames: frames}
}

type fakeAudio struct {
	starts int
	stops  int
	err    error
}

func (a *fakeAudio) Start(context.Context) error {
	a.starts++
	return a.err
}

func (a *fakeAudio) Stop() error {
	a.stops++
	return nil
}

func record(opts *Options) *[]int {
	var emitted []int
	opts.OnFrame = func(i int) { emitted = append(emitted, i) }
	return &emitted
}

func TestPlaysFramesOnAbsoluteDeadlines(t *testing.T) {
	clock := newFakeClock()
	src := newSource(4, 10)
	var out bytes.Buffer
	opts := Options{Clock: clock, NoCursorControl: true}
	emitted := record(&opts)

	stats, err := New(src, &out, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !reflect.DeepEqual(*emitted, []int{0, 1, 2, 3}) {
		t.Fatalf("unexpected frames %v", *emitted)
	}
	if stats.Frames != 4 || stats.Passes != 1 || stats.Interval != 100*time.Millisecond {
		t.Fatalf("unexpected stats %+v", stats)
	}
	want := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond}
	if !reflect.DeepEqual(clock.sleeps, want) {
		t.Fatalf("unexpected sleeps %v", clock.sleeps)
	}
	if got := out.String(); got != "F0F1F2F3"+term.Reset {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestSleepCompensatesForSlowWrites(t *testing.T) {
	clock := newFakeClock()
	src := newSource(3, 10)
	opts := Options{Clock: clock, NoCursorControl: true}
	opts.OnFrame = func(int) { clock.now = clock.now.Add(30 * time.Millisecond) }
	if _, err := New(src, io.Discard, opts).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []time.Duration{70 * time.Millisecond, 70 * time.Millisecond}
	if !reflect.DeepEqual(clock.sleeps, want) {
		t.Fatalf("expected drift-free sleeps %v, got %v", want, clock.sleeps)
	}
}

func TestDropLateSkipsFramesAFullIntervalBehind(t *testing.T) {
	clock := newFakeClock()
	src := newSource(4, 10)
	opts := Options{Clock: clock, NoCursorControl: true, DropLate: true}
	emitted := record(&opts)
	opts.OnFrame = func(i int) {
		*emitted = append(*emitted, i)
		if i == 0 {
			clock.now = clock.now.Add(350 * time.Millisecond)
		}
	}
	stats, err := New(src, io.Discard, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !reflect.DeepEqual(*emitted, []int{0, 3}) {
		t.Fatalf("unexpected frames %v", *emitted)
	}
	if stats.Dropped != 2 {
		t.Fatalf("expected 2 dropped frames, got %d", stats.Dropped)
	}
}

func TestSkipsDamagedFrame(t *testing.T) {
	clock := newFakeClock()
	src := newSource(3, 30)
	src.damaged = map[int]bool{1: true}
	opts := Options{Clock: clock, NoCursorControl: true}
	emitted := record(&opts)

	stats, err := New(src, io.Discard, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !reflect.DeepEqual(*emitted, []int{0, 2}) {
		t.Fatalf("unexpected frames %v", *emitted)
	}
	if stats.Damaged != 1 || stats.Ticks != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	interval := time.Second / 30
	if total := clock.now.Sub(time.Unix(1_700_000_000, 0)); total != 2*interval {
		t.Fatalf("damaged frame should keep its slot, elapsed %v", total)
	}
}

func TestLoopStopsWhenEveryFrameIsDamaged(t *testing.T) {
	clock := newFakeClock()
	src := newSource(3, 10)
	src.damaged = map[int]bool{0: true, 1: true, 2: true}
	opts := Options{Clock: clock, NoCursorControl: true, Loop: true}

	stats, err := New(src, io.Discard, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Passes != 1 || stats.Frames != 0 || stats.Damaged != 3 {
		t.Fatalf("expected a single empty pass, got %+v", stats)
	}
	want := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}
	if !reflect.DeepEqual(clock.sleeps, want) {
		t.Fatalf("damaged slots should still be paced, got sleeps %v", clock.sleeps)
	}
}

func TestLoopWithMaxTicks(t *testing.T) {
	src := newSource(2, 24)
	opts := Options{Clock: newFakeClock(), NoCursorControl: true, Loop: true, MaxTicks: 5}
	emitted := record(&opts)

	s := New(src, io.Discard, opts)
	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !reflect.DeepEqual(*emitted, []int{0, 1, 0, 1, 0}) {
		t.Fatalf("unexpected frames %v", *emitted)
	}
	if src.rewinds != 2 || stats.Passes != 3 {
		t.Fatalf("expected 2 rewinds and 3 passes, got %d and %d", src.rewinds, stats.Passes)
	}
	if s.State() != Stopped {
		t.Fatalf("expected stopped state, got %v", s.State())
	}
}

func TestCancellationStopsCleanly(t *testing.T) {
	clock := newFakeClock()
	src := newSource(10, 10)
	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	opts := Options{Clock: clock, Loop: true}
	emitted := record(&opts)
	clock.onSleep = func() {
		if len(clock.sleeps) == 3 {
			cancel()
		}
	}

	stats, err := New(src, &out, opts).Run(ctx)
	if err != nil {
		t.Fatalf("cancellation should not be an error, got %v", err)
	}
	if len(*emitted) != 3 || stats.Frames != 3 {
		t.Fatalf("expected 3 frames before cancel, got %v", *emitted)
	}
	text := out.String()
	if !strings.HasPrefix(text, term.HideCursor) {
		t.Fatalf("expected cursor hidden at start, got %q", text)
	}
	if !strings.HasSuffix(text, term.Reset+term.ShowCursor+"\n") {
		t.Fatalf("terminal not restored: %q", text)
	}
}

func TestAudioRestartsEachPass(t *testing.T) {
	src := newSource(2, 24)
	src.meta.AudioPresent = true
	audio := &fakeAudio{}
	opts := Options{Clock: newFakeClock(), NoCursorControl: true, Loop: true, MaxTicks: 4, Audio: audio}
	if _, err := New(src, io.Discard, opts).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if audio.starts != 2 || audio.stops != 1 {
		t.Fatalf("expected 2 starts and 1 stop, got %d/%d", audio.starts, audio.stops)
	}
}

func TestAudioSkippedWithoutTrack(t *testing.T) {
	audio := &fakeAudio{}
	opts := Options{Clock: newFakeClock(), NoCursorControl: true, Audio: audio}
	if _, err := New(newSource(2, 24), io.Discard, opts).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if audio.starts != 0 {
		t.Fatalf("audio started for archive without audio")
	}
}

func TestAudioFailureDoesNotStopFrames(t *testing.T) {
	src := newSource(3, 24)
	src.meta.AudioPresent = true
	audio := &fakeAudio{err: errors.New("no device")}
	opts := Options{Clock: newFakeClock(), NoCursorControl: true, Audio: audio}
	emitted := record(&opts)
	if _, err := New(src, io.Discard, opts).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(*emitted) != 3 {
		t.Fatalf("expected all frames, got %v", *emitted)
	}
}

func TestInvalidFrameRate(t *testing.T) {
	src := newSource(1, 0)
	_, err := New(src, io.Discard, Options{Clock: newFakeClock()}).Run(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFPSOverride(t *testing.T) {
	s := New(newSource(1, 30), io.Discard, Options{FPS: 5})
	interval, err := s.Interval()
	if err != nil || interval != 200*time.Millisecond {
		t.Fatalf("unexpected interval %v %v", interval, err)
	}
}

func TestPlaysArchiveReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.bapple")
	w, err := archive.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := w.WriteMetadata(archive.Metadata{FPS: 30, FrameCount: 2}); err != nil {
		t.Fatalf("WriteMetadata returned error: %v", err)
	}
	for _, f := range []string{"ab", "cd"} {
		if err := w.WriteFrame([]byte(f)); err != nil {
			t.Fatalf("WriteFrame returned error: %v", err)
		}
	}
	if err := w.Finalize(nil); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	r, err := archive.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer r.Close()

	var out bytes.Buffer
	opts := Options{Clock: newFakeClock(), NoCursorControl: true, Loop: true, MaxTicks: 3}
	if _, err := New(r, &out, opts).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := out.String(); got != "abcdab"+term.Reset {
		t.Fatalf("unexpected output %q", got)
	}
}
