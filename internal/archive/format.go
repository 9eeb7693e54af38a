// Package archive reads and writes .bapple archives.
//
// Layout (big-endian):
//
//	magic   [8]byte "\x89BAPPLE\n"
//	hdrLen  uint32
//	header  msgpack(Metadata)
//	frames  FrameCount x { len uint32, zstd payload }
//	audio   { len uint64, payload }   only when AudioPresent
//
// Frames are zstd-compressed individually with content checksums so a
// damaged frame can be detected and skipped without losing its neighbours.
package archive

import (
	"errors"
	"fmt"
	"time"

	"bapple/internal/services"
)

const (
	// Version is the only archive version this package reads and writes.
	Version = "1"
	// Extension is the conventional archive file suffix.
	Extension = ".bapple"
	// MaxFramePayload bounds a single compressed frame.
	MaxFramePayload = 64 * 1024 * 1024
	// MaxHeaderSize bounds the msgpack metadata block.
	MaxHeaderSize = 1 << 20

	frameLengthSize = 4
	audioLengthSize = 8
	headerPrefix    = len(magic) + 4
)

var magic = [8]byte{0x89, 'B', 'A', 'P', 'P', 'L', 'E', '\n'}

// ErrFrameCountMismatch reports a Finalize call whose frame count differs from the metadata.
var ErrFrameCountMismatch = errors.New("frame count mismatch")

// Metadata describes an archive. It is written once, before any frame.
type Metadata struct {
	Version      string  `msgpack:"version"`
	FPS          float64 `msgpack:"fps"`
	FrameCount   int     `msgpack:"frame_count"`
	AudioPresent bool    `msgpack:"audio_present"`

	FrametimeMicros int64     `msgpack:"frametime_us,omitempty"`
	Width           int       `msgpack:"width,omitempty"`
	Height          int       `msgpack:"height,omitempty"`
	Style           string    `msgpack:"style,omitempty"`
	Charset         string    `msgpack:"charset,omitempty"`
	Colorized       bool      `msgpack:"colorized,omitempty"`
	EncoderVersion  string    `msgpack:"encoder_version,omitempty"`
	ArchiveID       string    `msgpack:"archive_id,omitempty"`
	CreatedAt       time.Time `msgpack:"created_at,omitempty"`
	Source          string    `msgpack:"source,omitempty"`
}

// Frametime returns the nominal duration of one frame.
func (m Metadata) Frametime() time.Duration {
	if m.FrametimeMicros > 0 {
		return time.Duration(m.FrametimeMicros) * time.Microsecond
	}
	if m.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / m.FPS)
}

// Duration returns the nominal playback length of one pass.
func (m Metadata) Duration() time.Duration {
	return time.Duration(m.FrameCount) * m.Frametime()
}

func (m Metadata) validate() error {
	switch {
	case m.Version != Version:
		return fmt.Errorf("unsupported version %q", m.Version)
	case m.FPS <= 0 || m.FPS != m.FPS:
		return fmt.Errorf("fps must be positive, got %v", m.FPS)
	case m.FrameCount < 0:
		return fmt.Errorf("frame count must not be negative, got %d", m.FrameCount)
	}
	return nil
}

// Frame is one decoded frame payload.
type Frame struct {
	Index int
	Data  []byte
}

// FrameDecodeError reports a single frame that could not be read. It is
// recoverable: the next call to Reader.Next continues with the following
// frame unless Fatal is set.
type FrameDecodeError struct {
	Index  int
	Reason string
	// Fatal marks damage to the framing itself; no further frames are reachable.
	Fatal bool
	Err   error
}

func (e *FrameDecodeError) Error() string {
	msg := fmt.Sprintf("frame %d: %s", e.Index, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FrameDecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is classify frame errors under services.ErrFrameDecode.
func (e *FrameDecodeError) Is(target error) bool {
	return target == services.ErrFrameDecode
}

func corrupt(operation, message string, err error) error {
	return services.Wrap(services.ErrCorruptArchive, "archive", operation, message, err)
}
