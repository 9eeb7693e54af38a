// Package audio plays archive soundtracks next to frame playback.
//
// Two backends exist: an external player process (mpv, ffplay, and
// friends) fed from a temporary file, and an in-process decoder built on
// beep. Neither is synchronized to frames after it starts.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bapple/internal/logging"
	"bapple/internal/services"
)

// Mode selects the audio backend.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeExternal Mode = "external"
	ModeInternal Mode = "internal"
	ModeOff      Mode = "off"
)

// ErrNoPlayer reports that no external audio player is installed.
var ErrNoPlayer = errors.New("no audio player found")

// ParseMode validates a configured mode. Empty means auto.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeExternal:
		return ModeExternal, nil
	case ModeInternal:
		return ModeInternal, nil
	case ModeOff, "none", "mute":
		return ModeOff, nil
	}
	return "", services.Wrap(services.ErrConfiguration, "audio", "parse mode",
		fmt.Sprintf("unknown audio mode %q (want auto, external, internal, or off)", value), nil)
}

// Player plays one soundtrack from the beginning on every Start.
type Player interface {
	Start(ctx context.Context) error
	Stop() error
	Close() error
	Name() string
}

// Options configures New.
type Options struct {
	Mode Mode
	// Player names a preferred external player binary or path.
	Player string
	Logger *slog.Logger
}

// New picks a backend for data (mp3 bytes). It returns a nil Player when
// the mode is off or data is empty. In auto mode a missing external player
// falls back to the in-process decoder.
func New(data []byte, opts Options) (Player, error) {
	logger := logging.NewComponentLogger(opts.Logger, "audio")
	if opts.Mode == ModeOff || len(data) == 0 {
		return nil, nil
	}

	switch opts.Mode {
	case ModeInternal:
		return NewInternal(data)
	case ModeExternal:
		cfg, err := Detect(opts.Player)
		if err != nil {
			return nil, err
		}
		return NewExternal(cfg, data, logger), nil
	default:
		cfg, err := Detect(opts.Player)
		if err == nil {
			return NewExternal(cfg, data, logger), nil
		}
		logger.Debug("no external audio player; using built-in decoder", logging.Error(err))
		return NewInternal(data)
	}
}
