package config

import (
	"github.com/klauspost/compress/zstd"

	"bapple/internal/audio"
	"bapple/internal/budget"
	"bapple/internal/charset"
	"bapple/internal/frame"
	"bapple/internal/imageio"
)

// FrameOptions converts the encoding section into encoder options.
func (c *Config) FrameOptions() (frame.Options, error) {
	style, err := frame.ParseStyle(c.Encoding.Style)
	if err != nil {
		return frame.Options{}, err
	}
	cs, err := charset.Parse(c.Encoding.Charset)
	if err != nil {
		return frame.Options{}, err
	}
	return frame.Options{
		Style:                style,
		Charset:              cs,
		Colorize:             c.Encoding.Colorize,
		BackgroundBrightness: c.Encoding.BackgroundBrightness,
		RowScoped:            c.Encoding.RowScoped,
	}, nil
}

// Budget returns the per-frame size controller.
func (c *Config) Budget() budget.Controller {
	return budget.Controller{
		CeilingKiB: c.Encoding.MaxFrameKiB,
		Base:       uint8(c.Encoding.Threshold),
		Enabled:    c.Encoding.DynamicCompression,
	}
}

// FrameSize returns the configured grid; Auto() means terminal size.
func (c *Config) FrameSize() (imageio.Size, error) {
	return imageio.ParseSize(c.Encoding.FrameSize)
}

// ResizeFilter returns the configured resampling filter.
func (c *Config) ResizeFilter() (imageio.Filter, error) {
	return imageio.ParseFilter(c.Encoding.Filter)
}

// CompressionLevel returns the archive zstd level.
func (c *Config) CompressionLevel() zstd.EncoderLevel {
	if ok, level := zstd.EncoderLevelFromString(c.Encoding.ZstdLevel); ok {
		return level
	}
	return zstd.SpeedDefault
}

// AudioMode returns the playback audio backend selection.
func (c *Config) AudioMode() audio.Mode {
	mode, err := audio.ParseMode(c.Playback.Audio)
	if err != nil {
		return audio.ModeAuto
	}
	return mode
}
