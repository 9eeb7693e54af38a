package audio

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

// PlayerConfig describes an external player invocation. The audio file path
// is appended after Args.
type PlayerConfig struct {
	Name string
	Path string
	Args []string
}

var knownPlayers = []PlayerConfig{
	{Name: "mpv", Args: []string{"--no-video", "--really-quiet", "--no-terminal"}},
	{Name: "ffplay", Args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{Name: "mpg123", Args: []string{"-q"}},
	{Name: "cvlc", Args: []string{"--play-and-exit", "--quiet"}},
	{Name: "play", Args: []string{"-q"}},
	{Name: "afplay"},
}

// KnownPlayers lists the player names Detect searches, in priority order.
func KnownPlayers() []string {
	names := make([]string, 0, len(knownPlayers))
	for _, p := range knownPlayers {
		if p.Name == "afplay" && runtime.GOOS != "darwin" {
			continue
		}
		names = append(names, p.Name)
	}
	return names
}

// Detect returns the preferred player when set, otherwise the first known
// player found on PATH.
// Priority: mpv > ffplay > mpg123 > cvlc > play (sox) > afplay (macOS)
func Detect(preferred string) (*PlayerConfig, error) {
	if preferred != "" {
		path, err := exec.LookPath(preferred)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoPlayer, preferred, err)
		}
		cfg := PlayerConfig{Name: filepath.Base(preferred), Path: path}
		for _, known := range knownPlayers {
			if known.Name == cfg.Name {
				cfg.Args = append([]string(nil), known.Args...)
			}
		}
		return &cfg, nil
	}

	for _, name := range KnownPlayers() {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		for _, known := range knownPlayers {
			if known.Name == name {
				cfg := known
				cfg.Path = path
				cfg.Args = append([]string(nil), known.Args...)
				return &cfg, nil
			}
		}
	}
	return nil, ErrNoPlayer
}
