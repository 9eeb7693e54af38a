package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"bapple/internal/logging"
)

var commandContext = exec.CommandContext

// External runs an external player process against a temporary copy of the
// soundtrack.
type External struct {
	cfg    PlayerConfig
	data   []byte
	logger *slog.Logger

	mu   sync.Mutex
	file string
	cmd  *exec.Cmd
	done chan struct{}
}

// NewExternal builds an external player. The temporary file is written on
// the first Start.
func NewExternal(cfg *PlayerConfig, data []byte, logger *slog.Logger) *External {
	return &External{cfg: *cfg, data: data, logger: logger}
}

// Name returns the player binary name.
func (e *External) Name() string {
	return e.cfg.Name
}

// Start launches the player from the beginning, killing a previous run.
func (e *External) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	if e.file == "" {
		f, err := os.CreateTemp("", "bapple-audio-*.mp3")
		if err != nil {
			return fmt.Errorf("create audio temp file: %w", err)
		}
		if _, err := f.Write(e.data); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return fmt.Errorf("write audio temp file: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(f.Name())
			return fmt.Errorf("close audio temp file: %w", err)
		}
		e.file = f.Name()
	}

	args := append(append([]string(nil), e.cfg.Args...), e.file)
	cmd := commandContext(ctx, e.cfg.Path, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.cfg.Name, err)
	}
	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		if err != nil && ctx.Err() == nil {
			e.logger.Debug("audio player exited", logging.String("player", e.cfg.Name), logging.Error(err))
		}
		close(done)
	}()
	e.cmd = cmd
	e.done = done
	e.logger.Debug("audio player started", logging.String("player", e.cfg.Name), logging.Int("pid", cmd.Process.Pid))
	return nil
}

// Stop kills the running player, if any.
func (e *External) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	return nil
}

// Running reports whether a player process is alive.
func (e *External) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// Close stops playback and removes the temporary file.
func (e *External) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	if e.file == "" {
		return nil
	}
	err := os.Remove(e.file)
	e.file = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove audio temp file: %w", err)
	}
	return nil
}

func (e *External) stopLocked() {
	if e.cmd == nil {
		return
	}
	select {
	case <-e.done:
	default:
		_ = e.cmd.Process.Kill()
		<-e.done
	}
	e.cmd = nil
	e.done = nil
}
