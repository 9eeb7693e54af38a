package preflight

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"bapple/internal/audio"
	"bapple/internal/deps"
	"bapple/internal/term"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

var toolDescriptions = map[deps.Tool]struct {
	name     string
	purpose  string
	optional bool
}{
	deps.FFmpeg:  {"FFmpeg", "frame and audio extraction", false},
	deps.FFprobe: {"FFprobe", "frame rate detection", false},
	deps.YtDlp:   {"yt-dlp", "URL downloads", true},
}

// Tools reports where each external tool would be taken from without
// downloading anything.
func Tools(resolver *deps.Resolver) []Result {
	results := make([]Result, 0, len(deps.Tools))
	for _, tool := range deps.Tools {
		desc := toolDescriptions[tool]
		result := Result{Name: desc.name, Optional: desc.optional}
		path, ok, err := resolver.Locate(tool)
		switch {
		case err != nil:
			result.Detail = err.Error()
		case ok:
			result.Passed = true
			result.Detail = fmt.Sprintf("%s (%s)", path, desc.purpose)
		case resolver.AutoDownload:
			result.Passed = true
			result.Detail = fmt.Sprintf("not installed; downloaded on first use (%s)", desc.purpose)
		default:
			result.Detail = fmt.Sprintf("not found; required for %s", desc.purpose)
		}
		results = append(results, result)
	}
	return results
}

// CheckAudio reports which backend playback would use.
func CheckAudio(mode audio.Mode, preferred string) Result {
	result := Result{Name: "Audio", Optional: true}
	switch mode {
	case audio.ModeOff:
		result.Passed = true
		result.Detail = "disabled"
		return result
	case audio.ModeInternal:
		result.Passed = true
		result.Detail = "built-in decoder"
		return result
	}
	player, err := audio.Detect(preferred)
	switch {
	case err == nil:
		result.Passed = true
		result.Detail = fmt.Sprintf("%s (%s)", player.Name, player.Path)
	case mode == audio.ModeAuto && errors.Is(err, audio.ErrNoPlayer):
		result.Passed = true
		result.Detail = "no external player; built-in decoder (" + strings.Join(audio.KnownPlayers(), ", ") + " not found)"
	default:
		result.Detail = err.Error()
	}
	return result
}

// CheckTerminal reports the size playback and auto frame sizing would use.
func CheckTerminal() Result {
	size, err := term.Detect()
	if err != nil {
		return Result{Name: "Terminal", Optional: true, Detail: err.Error()}
	}
	w, h := term.FitFrame(size)
	return Result{Name: "Terminal", Optional: true, Passed: true, Detail: fmt.Sprintf("%s (auto frame %dx%d)", size, w, h)}
}
