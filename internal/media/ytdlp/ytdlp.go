// Package ytdlp downloads remote videos with the yt-dlp CLI.
package ytdlp

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"bapple/internal/services"
)

var commandContext = exec.CommandContext

var defaultFlags = []string{"--quiet", "--no-warnings", "--no-playlist"}

// Download fetches url as mp4 into output.
func Download(ctx context.Context, binary, url, output string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("url required")
	}
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	args := append(append([]string(nil), defaultFlags...), "-t", "mp4", "-o", output, "--", url)
	cmd := commandContext(ctx, binary, args...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err == nil {
		if _, statErr := os.Stat(output); statErr != nil {
			return services.Wrap(services.ErrExternalTool, "yt-dlp", "download", "no output file produced", statErr)
		}
		return nil
	}
	if ctx.Err() != nil {
		return services.Wrap(services.ErrStopped, "yt-dlp", "download", "cancelled", ctx.Err())
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrToolUnavailable, "yt-dlp", "download", binary, err)
	}
	return services.Wrap(services.ErrExternalTool, "yt-dlp", "download",
		"failed to grab a video from "+url+": "+strings.TrimSpace(string(out)), err)
}

// IsURL reports whether input looks like a remote address rather than a path.
func IsURL(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
