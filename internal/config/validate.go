package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/klauspost/compress/zstd"

	"bapple/internal/audio"
	"bapple/internal/charset"
	"bapple/internal/frame"
	"bapple/internal/imageio"
	"bapple/internal/services"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	return c.validateLogging()
}

func invalid(field, format string, args ...any) error {
	return services.Wrap(services.ErrConfiguration, "config", field, fmt.Sprintf(format, args...), nil)
}

func (c *Config) validateEncoding() error {
	style, err := frame.ParseStyle(c.Encoding.Style)
	if err != nil {
		return invalid("encoding.style", "%q is not a style (fg-paint, bg-paint, bg-only, mixed)", c.Encoding.Style)
	}
	if style == frame.BgOnly && !c.Encoding.Colorize {
		return invalid("encoding.style", "bg-only requires encoding.colorize = true")
	}
	if _, err := charset.Parse(c.Encoding.Charset); err != nil {
		return invalid("encoding.charset", "%v", err)
	}
	if c.Encoding.Threshold < 0 || c.Encoding.Threshold > 255 {
		return invalid("encoding.threshold", "must be between 0 and 255, got %d", c.Encoding.Threshold)
	}
	if c.Encoding.MaxFrameKiB < 0 {
		return invalid("encoding.max_frame_kib", "must not be negative")
	}
	if c.Encoding.DynamicCompression && c.Encoding.MaxFrameKiB == 0 {
		return invalid("encoding.max_frame_kib", "must be set when encoding.dynamic_compression is true")
	}
	if c.Encoding.BackgroundBrightness < 0 || c.Encoding.BackgroundBrightness > 1 {
		return invalid("encoding.background_brightness", "must be between 0 and 1, got %v", c.Encoding.BackgroundBrightness)
	}
	if _, err := imageio.ParseSize(c.Encoding.FrameSize); err != nil {
		return invalid("encoding.frame_size", "%q is not WxH", c.Encoding.FrameSize)
	}
	if _, err := imageio.ParseFilter(c.Encoding.Filter); err != nil {
		return invalid("encoding.filter", "%q is not nearest, linear, cubic, or lanczos", c.Encoding.Filter)
	}
	if c.Encoding.Gamma < 0 {
		return invalid("encoding.gamma", "must be positive, got %v", c.Encoding.Gamma)
	}
	if c.Encoding.Workers < 0 {
		return invalid("encoding.workers", "must not be negative")
	}
	if ok, _ := zstd.EncoderLevelFromString(c.Encoding.ZstdLevel); !ok {
		return invalid("encoding.zstd_level", "%q is not fastest, default, better, or best", c.Encoding.ZstdLevel)
	}
	return nil
}

func (c *Config) validatePlayback() error {
	if c.Playback.FPS < 0 {
		return invalid("playback.fps", "must not be negative")
	}
	if _, err := audio.ParseMode(c.Playback.Audio); err != nil {
		return invalid("playback.audio", "%q is not auto, external, internal, or off", c.Playback.Audio)
	}
	return nil
}

func (c *Config) validateTools() error {
	if !c.Tools.AutoDownload {
		return nil
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"tools.ffmpeg_url", c.Tools.FFmpegURL},
		{"tools.ffprobe_url", c.Tools.FFprobeURL},
		{"tools.yt_dlp_url", c.Tools.YtDlpURL},
	} {
		if field.value == "" {
			continue
		}
		parsed, err := url.Parse(field.value)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return invalid(field.name, "%q is not an http(s) URL", field.value)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return invalid("logging.level", "%q is not debug, info, warn, or error", c.Logging.Level)
}
