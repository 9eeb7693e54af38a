package archive

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Reader streams frames from an archive. Sequential reads (Next, Rewind)
// and random access (FrameAt, Audio) use independent offsets.
type Reader struct {
	path        string
	file        *os.File
	size        int64
	buf         *bufio.Reader
	dec         *zstd.Decoder
	meta        Metadata
	framesStart int64

	next  int
	ended bool

	index      []frameEntry
	indexBuilt bool
	indexEnd   int64
}

type frameEntry struct {
	offset int64
	length uint32
}

// Open validates the archive header and positions the reader at frame 0.
// A wrong magic, unsupported version, or unreadable header yields an error
// wrapping services.ErrCorruptArchive.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	r, err := newReader(path, file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

func newReader(path string, file *os.File) (*Reader, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	var prefix [headerPrefix]byte
	if _, err := io.ReadFull(file, prefix[:]); err != nil {
		return nil, corrupt("open", "file too short for archive header", err)
	}
	if !bytes.Equal(prefix[:len(magic)], magic[:]) {
		return nil, corrupt("open", "not a bapple archive (bad magic)", nil)
	}
	hdrLen := binary.BigEndian.Uint32(prefix[len(magic):])
	if hdrLen == 0 || hdrLen > MaxHeaderSize || int64(headerPrefix)+int64(hdrLen) > info.Size() {
		return nil, corrupt("open", fmt.Sprintf("invalid header length %d", hdrLen), nil)
	}

	header := make([]byte, hdrLen)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, corrupt("open", "truncated header", err)
	}
	var meta Metadata
	if err := msgpack.Unmarshal(header, &meta); err != nil {
		return nil, corrupt("open", "unreadable metadata", err)
	}
	if err := meta.validate(); err != nil {
		return nil, corrupt("open", "invalid metadata", err)
	}
	start := int64(headerPrefix) + int64(hdrLen)
	// Every frame needs at least its length prefix on disk.
	if maxFrames := (info.Size() - start) / frameLengthSize; int64(meta.FrameCount) > maxFrames {
		return nil, corrupt("open", fmt.Sprintf("frame count %d exceeds what %d bytes can hold", meta.FrameCount, info.Size()-start), nil)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(4*MaxFramePayload))
	if err != nil {
		return nil, fmt.Errorf("create frame decompressor: %w", err)
	}

	return &Reader{
		path:        path,
		file:        file,
		size:        info.Size(),
		buf:         bufio.NewReaderSize(file, 256*1024),
		dec:         dec,
		meta:        meta,
		framesStart: start,
	}, nil
}

// Path returns the archive path.
func (r *Reader) Path() string {
	return r.path
}

// Metadata returns the archive header.
func (r *Reader) Metadata() Metadata {
	return r.meta
}

// Next returns the next frame. It returns io.EOF after the last frame. A
// *FrameDecodeError marks one damaged frame; calling Next again continues
// with the following frame unless the error is Fatal, in which case the
// sequence ends.
func (r *Reader) Next() (Frame, error) {
	if r.ended || r.next >= r.meta.FrameCount {
		return Frame{}, io.EOF
	}
	index := r.next

	var prefix [frameLengthSize]byte
	if _, err := io.ReadFull(r.buf, prefix[:]); err != nil {
		r.ended = true
		return Frame{}, &FrameDecodeError{Index: index, Reason: "truncated length prefix", Fatal: true, Err: err}
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFramePayload {
		r.ended = true
		return Frame{}, &FrameDecodeError{Index: index, Reason: fmt.Sprintf("payload length %d exceeds maximum %d", length, MaxFramePayload), Fatal: true}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.buf, payload); err != nil {
		r.ended = true
		return Frame{}, &FrameDecodeError{Index: index, Reason: "truncated payload", Fatal: true, Err: err}
	}
	r.next++

	data, err := r.decode(index, payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Index: index, Data: data}, nil
}

// Rewind repositions the sequential cursor at frame 0.
func (r *Reader) Rewind() error {
	if _, err := r.file.Seek(r.framesStart, io.SeekStart); err != nil {
		return fmt.Errorf("rewind archive: %w", err)
	}
	r.buf.Reset(r.file)
	r.next = 0
	r.ended = false
	return nil
}

// FrameAt decodes frame i without moving the sequential cursor.
func (r *Reader) FrameAt(i int) (Frame, error) {
	if i < 0 || i >= r.meta.FrameCount {
		return Frame{}, fmt.Errorf("frame %d out of range [0,%d)", i, r.meta.FrameCount)
	}
	r.buildIndex()
	if i >= len(r.index) {
		return Frame{}, &FrameDecodeError{Index: i, Reason: "frame unreachable (framing damaged earlier)", Fatal: true}
	}
	entry := r.index[i]
	payload := make([]byte, entry.length)
	if _, err := r.file.ReadAt(payload, entry.offset+frameLengthSize); err != nil {
		return Frame{}, &FrameDecodeError{Index: i, Reason: "truncated payload", Fatal: true, Err: err}
	}
	data, err := r.decode(i, payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Index: i, Data: data}, nil
}

// FrameSizes returns the compressed payload length of every reachable frame.
func (r *Reader) FrameSizes() []int {
	r.buildIndex()
	sizes := make([]int, len(r.index))
	for i, entry := range r.index {
		sizes[i] = int(entry.length)
	}
	return sizes
}

// Audio returns the raw audio section, or nil when the archive has none.
func (r *Reader) Audio() ([]byte, error) {
	if !r.meta.AudioPresent {
		return nil, nil
	}
	r.buildIndex()
	if len(r.index) != r.meta.FrameCount {
		return nil, corrupt("read audio", "frame table damaged; audio unreachable", nil)
	}
	var prefix [audioLengthSize]byte
	if _, err := r.file.ReadAt(prefix[:], r.indexEnd); err != nil {
		return nil, corrupt("read audio", "missing audio length", err)
	}
	length := binary.BigEndian.Uint64(prefix[:])
	start := r.indexEnd + audioLengthSize
	if length == 0 || length > uint64(r.size-start) {
		return nil, corrupt("read audio", fmt.Sprintf("invalid audio length %d", length), nil)
	}
	audio := make([]byte, length)
	if _, err := r.file.ReadAt(audio, start); err != nil {
		return nil, corrupt("read audio", "truncated audio", err)
	}
	return audio, nil
}

// Close releases the file and decoder.
func (r *Reader) Close() error {
	r.dec.Close()
	return r.file.Close()
}

func (r *Reader) decode(index int, payload []byte) ([]byte, error) {
	data, err := r.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, &FrameDecodeError{Index: index, Reason: "decompress", Err: err}
	}
	return data, nil
}

// buildIndex walks the length prefixes once. It stops at the first prefix
// that cannot be read or is out of bounds.
func (r *Reader) buildIndex() {
	if r.indexBuilt {
		return
	}
	r.indexBuilt = true
	r.index = make([]frameEntry, 0, min(r.meta.FrameCount, 1<<16))
	offset := r.framesStart
	var prefix [frameLengthSize]byte
	for len(r.index) < r.meta.FrameCount {
		if _, err := r.file.ReadAt(prefix[:], offset); err != nil {
			break
		}
		length := binary.BigEndian.Uint32(prefix[:])
		end := offset + frameLengthSize + int64(length)
		if length > MaxFramePayload || end > r.size {
			break
		}
		r.index = append(r.index, frameEntry{offset: offset, length: length})
		offset = end
	}
	r.indexEnd = offset
}

// IsFrameDecodeError reports whether err is a damaged-frame error and whether
// reading can continue past it.
func IsFrameDecodeError(err error) (recoverable bool, ok bool) {
	var frameErr *FrameDecodeError
	if errors.As(err, &frameErr) {
		return !frameErr.Fatal, true
	}
	return false, false
}
