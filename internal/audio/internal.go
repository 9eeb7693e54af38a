package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
)

// speaker.Init may only run once per process.
var (
	speakerOnce sync.Once
	speakerErr  error
	speakerRate beep.SampleRate
)

// Internal decodes mp3 in process and plays it through the default output
// device.
type Internal struct {
	mu       sync.Mutex
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
}

// NewInternal decodes the soundtrack header and prepares the speaker.
func NewInternal(data []byte) (*Internal, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	speakerOnce.Do(func() {
		speakerRate = format.SampleRate
		speakerErr = speaker.Init(format.SampleRate, format.SampleRate.N(100*time.Millisecond))
	})
	if speakerErr != nil {
		_ = streamer.Close()
		return nil, fmt.Errorf("init audio device: %w", speakerErr)
	}
	return &Internal{streamer: streamer, format: format}, nil
}

// Name identifies the backend.
func (p *Internal) Name() string {
	return "built-in"
}

// Start rewinds the soundtrack and plays it.
func (p *Internal) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	speaker.Clear()
	if err := p.streamer.Seek(0); err != nil {
		return fmt.Errorf("rewind audio: %w", err)
	}
	var s beep.Streamer = p.streamer
	if p.format.SampleRate != speakerRate {
		s = beep.Resample(4, p.format.SampleRate, speakerRate, s)
	}
	p.ctrl = &beep.Ctrl{Streamer: s}
	speaker.Play(p.ctrl)
	return nil
}

// Stop silences playback.
func (p *Internal) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
	}
	speaker.Clear()
	return nil
}

// Close stops playback and releases the decoder.
func (p *Internal) Close() error {
	_ = p.Stop()
	return p.streamer.Close()
}
