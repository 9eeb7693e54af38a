// Package playback streams archive frames to a terminal at a fixed rate.
//
// The scheduler emits frame i of a pass at start+i*interval, sleeping until
// that absolute deadline so per-frame jitter never accumulates. Damaged
// frames are skipped but keep their slot. Audio, when present, runs as an
// independent player started at the beginning of each pass; it is never
// corrected at runtime.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"bapple/internal/archive"
	"bapple/internal/logging"
	"bapple/internal/services"
	"bapple/internal/term"
)

// Source is the sequential frame stream the scheduler consumes.
// *archive.Reader satisfies it.
type Source interface {
	Metadata() archive.Metadata
	Next() (archive.Frame, error)
	Rewind() error
}

// AudioPlayer plays the archive soundtrack alongside the frames.
type AudioPlayer interface {
	// Start begins playback from the beginning, replacing any running playback.
	Start(ctx context.Context) error
	Stop() error
}

// State is the scheduler lifecycle state.
type State int32

const (
	Idle State = iota
	Playing
	Looping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Looping:
		return "looping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Scheduler.
type Options struct {
	// FPS overrides the archive frame rate when positive.
	FPS  float64
	Loop bool
	// MaxTicks bounds the number of frame slots across all passes. Zero is unbounded.
	MaxTicks int
	// DropLate skips frames that are already a full interval behind schedule.
	DropLate bool
	Audio    AudioPlayer
	Clock    Clock
	Logger   *slog.Logger
	// NoCursorControl writes frames back to back without homing the cursor.
	NoCursorControl bool
	// OnFrame is called after each frame is written.
	OnFrame func(index int)
}

// Stats summarizes a run.
type Stats struct {
	Frames   int
	Damaged  int
	Dropped  int
	Passes   int
	Ticks    int
	Interval time.Duration
	Elapsed  time.Duration
}

// Scheduler plays one Source to one writer.
type Scheduler struct {
	src    Source
	out    io.Writer
	opts   Options
	clock  Clock
	logger *slog.Logger
	state  atomic.Int32
	buf    []byte
}

// New builds a scheduler in the Idle state.
func New(src Source, out io.Writer, opts Options) *Scheduler {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		src:    src,
		out:    out,
		opts:   opts,
		clock:  clock,
		logger: logging.NewComponentLogger(opts.Logger, "playback"),
	}
}

// State returns the current lifecycle state. Safe for concurrent use.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// Interval returns the frame interval for the effective frame rate.
func (s *Scheduler) Interval() (time.Duration, error) {
	fps := s.opts.FPS
	if fps <= 0 {
		fps = s.src.Metadata().FPS
	}
	if fps <= 0 || fps != fps {
		return 0, services.Wrap(services.ErrConfiguration, "playback", "interval",
			fmt.Sprintf("frame rate must be positive, got %v", fps), nil)
	}
	return time.Duration(float64(time.Second) / fps), nil
}

// Run plays until the frames run out (without Loop), MaxTicks is reached,
// or ctx is cancelled. Cancellation is a normal stop and returns a nil error.
func (s *Scheduler) Run(ctx context.Context) (stats Stats, err error) {
	interval, err := s.Interval()
	if err != nil {
		s.setState(Stopped)
		return Stats{}, err
	}
	stats.Interval = interval
	meta := s.src.Metadata()
	began := s.clock.Now()

	if err := s.prepareTerminal(); err != nil {
		s.setState(Stopped)
		return stats, err
	}
	defer func() {
		s.stopAudio()
		s.restoreTerminal()
		stats.Elapsed = s.clock.Now().Sub(began)
		s.setState(Stopped)
	}()

	audio := s.opts.Audio
	if !meta.AudioPresent {
		audio = nil
	}

	s.logger.Info("playback started",
		logging.Int("frames", meta.FrameCount),
		logging.Float64("fps", float64(time.Second)/float64(interval)),
		logging.Bool("loop", s.opts.Loop),
		logging.Bool("audio", audio != nil),
	)

	s.setState(Playing)
	for pass := 0; ; pass++ {
		if pass > 0 {
			if ctx.Err() != nil || (s.opts.MaxTicks > 0 && stats.Ticks >= s.opts.MaxTicks) {
				break
			}
			if err := s.src.Rewind(); err != nil {
				return stats, fmt.Errorf("rewind: %w", err)
			}
			s.setState(Looping)
		}
		if audio != nil {
			if err := audio.Start(ctx); err != nil {
				logging.WarnWithContext(s.logger, "audio playback unavailable", "audio_start_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "frames play without sound"),
					logging.String(logging.FieldErrorHint, "check the audio player or pass --mute"),
				)
				audio = nil
			}
		}
		stats.Passes++

		emitted := stats.Frames
		slots, done, err := s.playPass(ctx, interval, &stats)
		if err != nil {
			return stats, err
		}
		if done || !s.opts.Loop || slots == 0 {
			break
		}
		if stats.Frames == emitted {
			logging.WarnWithContext(s.logger, "stopping loop, pass showed no frames", "loop_empty_pass",
				logging.Int("slots", slots),
				logging.String(logging.FieldImpact, "playback ends after one pass"),
				logging.String(logging.FieldErrorHint, "recompile the archive"),
			)
			break
		}
	}

	s.logger.Info("playback finished",
		logging.Int("frames", stats.Frames),
		logging.Int("damaged", stats.Damaged),
		logging.Int("dropped", stats.Dropped),
		logging.Int("passes", stats.Passes),
	)
	return stats, nil
}

// playPass plays the source from its current position to the end. It
// returns the number of slots consumed and whether the whole run should end.
func (s *Scheduler) playPass(ctx context.Context, interval time.Duration, stats *Stats) (int, bool, error) {
	start := s.clock.Now()
	slot := 0
	for ; ; slot++ {
		if ctx.Err() != nil {
			return slot, true, nil
		}
		if s.opts.MaxTicks > 0 && stats.Ticks >= s.opts.MaxTicks {
			return slot, true, nil
		}

		frame, err := s.src.Next()
		if errors.Is(err, io.EOF) {
			return slot, false, nil
		}
		stats.Ticks++
		if err != nil {
			recoverable, isFrameErr := archive.IsFrameDecodeError(err)
			if !isFrameErr {
				return slot, true, fmt.Errorf("read frame %d: %w", slot, err)
			}
			stats.Damaged++
			logging.WarnWithContext(s.logger, "skipping damaged frame", "frame_damaged",
				logging.Int("frame", slot),
				logging.Error(err),
				logging.String(logging.FieldImpact, "frame slot left blank"),
				logging.String(logging.FieldErrorHint, "recompile the archive"),
			)
			if !recoverable {
				return slot + 1, false, nil
			}
			if !s.holdSlot(ctx, start.Add(time.Duration(slot)*interval)) {
				return slot + 1, true, nil
			}
			continue
		}

		deadline := start.Add(time.Duration(slot) * interval)
		now := s.clock.Now()
		if s.opts.DropLate && now.Sub(deadline) >= interval {
			stats.Dropped++
			continue
		}
		if wait := deadline.Sub(now); wait > 0 {
			if err := s.clock.Sleep(ctx, wait); err != nil {
				return slot, true, nil
			}
		}
		if err := s.writeFrame(frame.Data); err != nil {
			return slot, true, fmt.Errorf("write frame %d: %w", frame.Index, err)
		}
		stats.Frames++
		if s.opts.OnFrame != nil {
			s.opts.OnFrame(frame.Index)
		}
	}
}

// holdSlot waits until deadline so a skipped frame still takes its time on
// screen. It reports false when ctx was cancelled.
func (s *Scheduler) holdSlot(ctx context.Context, deadline time.Time) bool {
	wait := deadline.Sub(s.clock.Now())
	if wait <= 0 {
		return true
	}
	return s.clock.Sleep(ctx, wait) == nil
}

func (s *Scheduler) writeFrame(data []byte) error {
	s.buf = s.buf[:0]
	if !s.opts.NoCursorControl {
		s.buf = append(s.buf, term.CursorHome...)
	}
	s.buf = append(s.buf, data...)
	_, err := s.out.Write(s.buf)
	return err
}

func (s *Scheduler) prepareTerminal() error {
	if s.opts.NoCursorControl {
		return nil
	}
	_, err := io.WriteString(s.out, term.HideCursor+term.ClearScreen)
	return err
}

func (s *Scheduler) restoreTerminal() {
	seq := term.Reset
	if !s.opts.NoCursorControl {
		seq += term.ShowCursor + "\n"
	}
	_, _ = io.WriteString(s.out, seq)
}

func (s *Scheduler) stopAudio() {
	if s.opts.Audio == nil {
		return
	}
	if err := s.opts.Audio.Stop(); err != nil {
		s.logger.Debug("audio stop failed", logging.Error(err))
	}
}
