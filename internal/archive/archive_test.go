package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"bapple/internal/services"
)

func writeArchive(t *testing.T, path string, meta Metadata, frames [][]byte, audio []byte) {
	t.Helper()
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := w.WriteMetadata(meta); err != nil {
		t.Fatalf("WriteMetadata returned error: %v", err)
	}
	for i, f := range frames {
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame(%d) returned error: %v", i, err)
		}
	}
	if err := w.Finalize(audio); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
}

func sampleFrames() [][]byte {
	return [][]byte{
		[]byte("\x1b[38;2;255;0;0m@@\n##\x1b[0m"),
		[]byte("frame one"),
		bytes.Repeat([]byte(".:-"), 500),
	}
}

// payloadOffsets parses the frame table directly from disk.
func payloadOffsets(t *testing.T, data []byte) []int {
	t.Helper()
	hdrLen := int(binary.BigEndian.Uint32(data[8:12]))
	offset := 12 + hdrLen
	var offsets []int
	for offset+4 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		if offset+4+length > len(data) {
			break
		}
		offsets = append(offsets, offset+4)
		offset += 4 + length
	}
	return offsets
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.bapple")
	frames := sampleFrames()
	audio := []byte("ID3 fake mp3 bytes")
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	writeArchive(t, path, Metadata{
		FPS:          30,
		FrameCount:   len(frames),
		AudioPresent: true,
		Width:        2,
		Height:       2,
		Style:        "fg-paint",
		ArchiveID:    "abc",
		CreatedAt:    created,
	}, frames, audio)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer r.Close()

	meta := r.Metadata()
	if meta.Version != Version || meta.FPS != 30 || meta.FrameCount != 3 || !meta.AudioPresent {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if meta.FrametimeMicros != 33333 {
		t.Fatalf("expected derived frametime 33333us, got %d", meta.FrametimeMicros)
	}
	if !meta.CreatedAt.Equal(created) || meta.Style != "fg-paint" || meta.ArchiveID != "abc" {
		t.Fatalf("descriptive fields lost: %+v", meta)
	}

	for i, want := range frames {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next(%d) returned error: %v", i, err)
		}
		if got.Index != i || !bytes.Equal(got.Data, want) {
			t.Fatalf("frame %d mismatch", i)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}

	if err := r.Rewind(); err != nil {
		t.Fatalf("Rewind returned error: %v", err)
	}
	first, err := r.Next()
	if err != nil || !bytes.Equal(first.Data, frames[0]) {
		t.Fatalf("expected frame 0 after rewind, got %v %v", first, err)
	}

	last, err := r.FrameAt(2)
	if err != nil || !bytes.Equal(last.Data, frames[2]) {
		t.Fatalf("FrameAt(2) mismatch: %v", err)
	}
	second, err := r.Next()
	if err != nil || second.Index != 1 {
		t.Fatalf("FrameAt must not move the cursor, got %v %v", second.Index, err)
	}

	gotAudio, err := r.Audio()
	if err != nil || !bytes.Equal(gotAudio, audio) {
		t.Fatalf("audio mismatch: %q %v", gotAudio, err)
	}
	if sizes := r.FrameSizes(); len(sizes) != 3 {
		t.Fatalf("expected 3 frame sizes, got %v", sizes)
	}
}

func TestOpenRejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.bapple")
	if err := os.WriteFile(path, []byte("GIF89a not an archive at all"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := Open(path)
	if !errors.Is(err, services.ErrCorruptArchive) {
		t.Fatalf("expected corrupt archive, got %v", err)
	}
	if r != nil {
		t.Fatalf("expected no reader for corrupt archive")
	}
}

func TestOpenRejectsUnsupportedVersion(t *testing.T) {
	header, err := msgpack.Marshal(&Metadata{Version: "2", FPS: 24, FrameCount: 0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var buf bytes.Buffer
	buf.Write(magic[:])
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(header)))
	buf.Write(header)
	path := filepath.Join(t.TempDir(), "future.bapple")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path); !errors.Is(err, services.ErrCorruptArchive) {
		t.Fatalf("expected corrupt archive, got %v", err)
	}
}

func TestOpenRejectsImpossibleFrameCount(t *testing.T) {
	for _, count := range []int{1 << 60, 1_000_000_000, 2} {
		header, err := msgpack.Marshal(&Metadata{Version: Version, FPS: 30, FrameCount: count, AudioPresent: true})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var buf bytes.Buffer
		buf.Write(magic[:])
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(header)))
		buf.Write(header)
		buf.Write([]byte{0, 0, 0})
		path := filepath.Join(t.TempDir(), "inflated.bapple")
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		r, err := Open(path)
		if !errors.Is(err, services.ErrCorruptArchive) {
			t.Fatalf("frame count %d: expected corrupt archive, got %v", count, err)
		}
		if r != nil {
			t.Fatalf("frame count %d: expected no reader", count)
		}
	}
}

func TestOpenRejectsTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bapple")
	writeArchive(t, path, Metadata{FPS: 30, FrameCount: 0}, nil, nil)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path); !errors.Is(err, services.ErrCorruptArchive) {
		t.Fatalf("expected corrupt archive, got %v", err)
	}
}

func TestDamagedFrameIsRecoverable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "damaged.bapple")
	frames := sampleFrames()
	writeArchive(t, path, Metadata{FPS: 30, FrameCount: 3}, frames, nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	offsets := payloadOffsets(t, data)
	if len(offsets) != 3 {
		t.Fatalf("expected 3 frames on disk, got %d", len(offsets))
	}
	end := offsets[2] - 4
	for i := offsets[1]; i < end; i++ {
		data[i] = 0
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer r.Close()

	if f, err := r.Next(); err != nil || f.Index != 0 {
		t.Fatalf("frame 0: %v %v", f.Index, err)
	}
	_, err = r.Next()
	if !errors.Is(err, services.ErrFrameDecode) {
		t.Fatalf("expected frame decode error, got %v", err)
	}
	if recoverable, ok := IsFrameDecodeError(err); !ok || !recoverable {
		t.Fatalf("damaged payload should be recoverable")
	}
	if f, err := r.Next(); err != nil || f.Index != 2 || !bytes.Equal(f.Data, frames[2]) {
		t.Fatalf("frame 2: %v %v", f.Index, err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestTruncatedFrameEndsSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cut.bapple")
	frames := sampleFrames()
	writeArchive(t, path, Metadata{FPS: 30, FrameCount: 3}, frames, nil)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	offsets := payloadOffsets(t, data)
	if err := os.WriteFile(path, data[:offsets[2]+2], 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer r.Close()
	for i := 0; i < 2; i++ {
		if _, err := r.Next(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	_, err = r.Next()
	if recoverable, ok := IsFrameDecodeError(err); !ok || recoverable {
		t.Fatalf("expected fatal frame decode error, got %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after fatal error, got %v", err)
	}
	if _, err := r.FrameAt(2); err == nil {
		t.Fatalf("expected FrameAt(2) to fail")
	}
}

func TestWriterCountsFramesAndBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counted.bapple")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	frames := sampleFrames()
	if err := w.WriteMetadata(Metadata{FPS: 24, FrameCount: len(frames), AudioPresent: true}); err != nil {
		t.Fatalf("WriteMetadata returned error: %v", err)
	}
	for _, f := range frames {
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame returned error: %v", err)
		}
	}
	if w.FramesWritten() != len(frames) {
		t.Fatalf("FramesWritten = %d, want %d", w.FramesWritten(), len(frames))
	}
	if err := w.Finalize([]byte("ID3")); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if w.BytesWritten() != info.Size() {
		t.Fatalf("BytesWritten = %d, file has %d", w.BytesWritten(), info.Size())
	}
}

func TestWriterMisusePanics(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(filepath.Join(dir, "a.bapple"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	t.Cleanup(func() { _ = w.Abort() })
	assertPanics(t, "frame before metadata", func() { _ = w.WriteFrame([]byte("x")) })

	if err := w.WriteMetadata(Metadata{FPS: 10, FrameCount: 1}); err != nil {
		t.Fatalf("WriteMetadata returned error: %v", err)
	}
	assertPanics(t, "second metadata", func() { _ = w.WriteMetadata(Metadata{FPS: 10, FrameCount: 1}) })
}

func assertPanics(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s: expected panic", name)
		}
	}()
	fn()
}

func TestFinalizeChecksFrameCountAndAudio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.bapple")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := w.WriteMetadata(Metadata{FPS: 10, FrameCount: 2, AudioPresent: true}); err != nil {
		t.Fatalf("WriteMetadata returned error: %v", err)
	}
	if err := w.WriteFrame([]byte("only one")); err != nil {
		t.Fatalf("WriteFrame returned error: %v", err)
	}
	if err := w.Finalize([]byte("audio")); !errors.Is(err, ErrFrameCountMismatch) {
		t.Fatalf("expected frame count mismatch, got %v", err)
	}
	if err := w.WriteFrame([]byte("second")); err != nil {
		t.Fatalf("WriteFrame returned error: %v", err)
	}
	if err := w.WriteFrame([]byte("third")); !errors.Is(err, ErrFrameCountMismatch) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if err := w.Finalize(nil); err == nil {
		t.Fatalf("expected missing audio error")
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort returned error: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial archive removed, stat err=%v", err)
	}
}

func TestWriteMetadataRejectsInvalidFPS(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "fps.bapple"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	defer w.Abort()
	if err := w.WriteMetadata(Metadata{FPS: 0, FrameCount: 1}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCreateIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.bapple")
	first, err := Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	defer first.Abort()
	if _, err := Create(path); err == nil {
		t.Fatalf("expected second writer to be refused")
	}
}

func TestMetadataFrametime(t *testing.T) {
	meta := Metadata{FPS: 25, FrameCount: 50}
	if meta.Frametime() != 40*time.Millisecond {
		t.Fatalf("unexpected frametime %v", meta.Frametime())
	}
	if meta.Duration() != 2*time.Second {
		t.Fatalf("unexpected duration %v", meta.Duration())
	}
}
