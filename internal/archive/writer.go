package archive

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"bapple/internal/services"
)

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	level zstd.EncoderLevel
}

// WithCompressionLevel selects the zstd level for frame payloads.
func WithCompressionLevel(level zstd.EncoderLevel) WriterOption {
	return func(c *writerConfig) {
		c.level = level
	}
}

// Writer appends frames to a new archive. It owns the file and an advisory
// lock beside it until Finalize or Abort. A Writer is not safe for
// concurrent use; callers serialize frames in playback order.
type Writer struct {
	path     string
	file     *os.File
	buf      *bufio.Writer
	lock     *flock.Flock
	enc      *zstd.Encoder
	meta     Metadata
	hasMeta  bool
	frames   int
	bytesOut int64
	closed   bool
}

// Create opens path for writing, truncating any previous archive.
func Create(path string, opts ...WriterOption) (*Writer, error) {
	cfg := writerConfig{level: zstd.SpeedDefault}
	for _, opt := range opts {
		opt(&cfg)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	lock := flock.New(lockPath(path))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock archive: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("archive %s is being written by another process", path)
	}

	file, err := os.Create(path)
	if err != nil {
		releaseLock(lock)
		return nil, fmt.Errorf("create archive: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(cfg.level), zstd.WithEncoderCRC(true))
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		releaseLock(lock)
		return nil, fmt.Errorf("create frame compressor: %w", err)
	}

	return &Writer{
		path: path,
		file: file,
		buf:  bufio.NewWriterSize(file, 256*1024),
		lock: lock,
		enc:  enc,
	}, nil
}

// Path returns the archive path.
func (w *Writer) Path() string {
	return w.path
}

// FramesWritten returns how many frames have been appended.
func (w *Writer) FramesWritten() int {
	return w.frames
}

// BytesWritten returns the number of archive bytes written so far.
func (w *Writer) BytesWritten() int64 {
	return w.bytesOut
}

// WriteMetadata writes the archive header. It must be called exactly once,
// before any frame. Version defaults to the current version and
// FrametimeMicros is derived from FPS when unset.
func (w *Writer) WriteMetadata(meta Metadata) error {
	if w.closed {
		panic("archive: WriteMetadata after Finalize or Abort")
	}
	if w.hasMeta {
		panic("archive: WriteMetadata called twice")
	}
	if meta.Version == "" {
		meta.Version = Version
	}
	if meta.FrametimeMicros == 0 && meta.FPS > 0 {
		meta.FrametimeMicros = int64(1e6/meta.FPS + 0.5)
	}
	if err := meta.validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "archive", "write metadata", "invalid metadata", err)
	}

	header, err := msgpack.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if len(header) > MaxHeaderSize {
		return fmt.Errorf("metadata too large: %d bytes", len(header))
	}

	var prefix [headerPrefix]byte
	copy(prefix[:], magic[:])
	binary.BigEndian.PutUint32(prefix[len(magic):], uint32(len(header)))
	if err := w.write(prefix[:]); err != nil {
		return err
	}
	if err := w.write(header); err != nil {
		return err
	}
	w.meta = meta
	w.hasMeta = true
	return nil
}

// WriteFrame compresses and appends one encoded frame.
func (w *Writer) WriteFrame(data []byte) error {
	if w.closed {
		panic("archive: WriteFrame after Finalize or Abort")
	}
	if !w.hasMeta {
		panic("archive: WriteFrame before WriteMetadata")
	}
	if w.frames >= w.meta.FrameCount {
		return fmt.Errorf("%w: metadata declares %d frames", ErrFrameCountMismatch, w.meta.FrameCount)
	}

	payload := w.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	if len(payload) > MaxFramePayload {
		return fmt.Errorf("frame %d: compressed payload %d exceeds maximum %d", w.frames, len(payload), MaxFramePayload)
	}

	var prefix [frameLengthSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if err := w.write(prefix[:]); err != nil {
		return err
	}
	if err := w.write(payload); err != nil {
		return err
	}
	w.frames++
	return nil
}

// Finalize writes the audio section, flushes, and releases the file and
// lock. The number of frames written must equal Metadata.FrameCount and
// audio must be non-empty exactly when Metadata.AudioPresent is set.
func (w *Writer) Finalize(audio []byte) error {
	if w.closed {
		panic("archive: Finalize after Finalize or Abort")
	}
	if !w.hasMeta {
		panic("archive: Finalize before WriteMetadata")
	}
	if w.frames != w.meta.FrameCount {
		return fmt.Errorf("%w: wrote %d of %d frames", ErrFrameCountMismatch, w.frames, w.meta.FrameCount)
	}
	switch {
	case w.meta.AudioPresent && len(audio) == 0:
		return errors.New("metadata declares audio but none was supplied")
	case !w.meta.AudioPresent && len(audio) > 0:
		return errors.New("audio supplied but metadata declares none")
	}

	if w.meta.AudioPresent {
		var prefix [audioLengthSize]byte
		binary.BigEndian.PutUint64(prefix[:], uint64(len(audio)))
		if err := w.write(prefix[:]); err != nil {
			return err
		}
		if err := w.write(audio); err != nil {
			return err
		}
	}

	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync archive: %w", err)
	}
	w.closed = true
	_ = w.enc.Close()
	err := w.file.Close()
	releaseLock(w.lock)
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// Abort discards the partial archive. It is safe to call after Finalize
// failed and is a no-op once the writer is closed.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.enc.Close()
	_ = w.file.Close()
	err := os.Remove(w.path)
	releaseLock(w.lock)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove partial archive: %w", err)
	}
	return nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.buf.Write(p)
	w.bytesOut += int64(n)
	if err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}

func lockPath(path string) string {
	return path + ".lock"
}

func releaseLock(lock *flock.Flock) {
	_ = lock.Unlock()
	_ = os.Remove(lock.Path())
}
