// Package ffmpeg runs the ffmpeg CLI to split a video into still frames and
// extract its soundtrack.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"bapple/internal/services"
)

var commandContext = exec.CommandContext

// FramePattern is the printf-style name ffmpeg writes frames with.
const FramePattern = "%06d.png"

// AudioFile is the soundtrack name inside a staging directory.
const AudioFile = "audio.mp3"

// Option configures the runner.
type Option func(*Runner)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(r *Runner) {
		if strings.TrimSpace(binary) != "" {
			r.binary = binary
		}
	}
}

// WithExtraFlags appends user flags after the input on every invocation.
func WithExtraFlags(flags []string) Option {
	return func(r *Runner) {
		r.extra = append([]string(nil), flags...)
	}
}

// Runner wraps the ffmpeg command-line tool.
type Runner struct {
	binary string
	extra  []string
}

// New constructs a runner using defaults.
func New(opts ...Option) *Runner {
	r := &Runner{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binary returns the executable the runner invokes.
func (r *Runner) Binary() string {
	return r.binary
}

// ExtractFrames writes every video frame of input as PNG into dir and
// returns the frame paths in playback order.
func (r *Runner) ExtractFrames(ctx context.Context, input, dir string) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return nil, errors.New("input path required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}
	args := []string{"-i", input, "-vsync", "0"}
	args = append(args, r.extra...)
	args = append(args, filepath.Join(dir, FramePattern))
	if err := r.run(ctx, "extract frames", args); err != nil {
		return nil, err
	}
	frames, err := ListFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "extract frames", "no frames produced", nil)
	}
	return frames, nil
}

// ExtractAudio writes the first audio stream of input to dest as mp3.
func (r *Runner) ExtractAudio(ctx context.Context, input, dest string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("input path required")
	}
	args := []string{"-i", input, "-vn", "-sn", "-dn", "-map", "0:a:0"}
	args = append(args, r.extra...)
	args = append(args, dest)
	return r.run(ctx, "extract audio", args)
}

func (r *Runner) run(ctx context.Context, operation string, args []string) error {
	full := append([]string{"-y", "-hide_banner", "-loglevel", "error", "-nostdin"}, args...)
	cmd := commandContext(ctx, r.binary, full...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return services.Wrap(services.ErrStopped, "ffmpeg", operation, "cancelled", ctx.Err())
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrToolUnavailable, "ffmpeg", operation, r.binary, err)
	}
	return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, strings.TrimSpace(string(output)), err)
}

// ListFrames returns the PNG files in dir sorted by name.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	frames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		frames = append(frames, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(frames)
	return frames, nil
}
