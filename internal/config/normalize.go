package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoding()
	c.normalizePlayback()
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ToolsDir) == "" {
		c.Paths.ToolsDir = defaultToolsDir
	}
	if c.Paths.ToolsDir, err = expandPath(c.Paths.ToolsDir); err != nil {
		return fmt.Errorf("paths.tools_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Style = strings.ToLower(strings.TrimSpace(c.Encoding.Style))
	if c.Encoding.Style == "" {
		c.Encoding.Style = defaultStyle
	}
	c.Encoding.FrameSize = strings.ToLower(strings.TrimSpace(c.Encoding.FrameSize))
	if c.Encoding.FrameSize == "" {
		c.Encoding.FrameSize = defaultFrameSize
	}
	c.Encoding.Filter = strings.ToLower(strings.TrimSpace(c.Encoding.Filter))
	if c.Encoding.Filter == "" {
		c.Encoding.Filter = defaultFilter
	}
	c.Encoding.ZstdLevel = strings.ToLower(strings.TrimSpace(c.Encoding.ZstdLevel))
	if c.Encoding.ZstdLevel == "" {
		c.Encoding.ZstdLevel = defaultZstdLevel
	}
	if c.Encoding.Gamma == 0 {
		c.Encoding.Gamma = defaultGamma
	}
}

func (c *Config) normalizePlayback() {
	c.Playback.Audio = strings.ToLower(strings.TrimSpace(c.Playback.Audio))
	if c.Playback.Audio == "" {
		c.Playback.Audio = defaultAudioMode
	}
	c.Playback.AudioPlayer = strings.TrimSpace(c.Playback.AudioPlayer)
}

func (c *Config) normalizeTools() error {
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"tools.ffmpeg", &c.Tools.FFmpeg},
		{"tools.ffprobe", &c.Tools.FFprobe},
		{"tools.yt_dlp", &c.Tools.YtDlp},
	} {
		trimmed := strings.TrimSpace(*field.value)
		if trimmed == "" || !strings.ContainsAny(trimmed, `/\~`) {
			*field.value = trimmed
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	c.Tools.FFmpegURL = strings.TrimSpace(c.Tools.FFmpegURL)
	c.Tools.FFprobeURL = strings.TrimSpace(c.Tools.FFprobeURL)
	c.Tools.YtDlpURL = strings.TrimSpace(c.Tools.YtDlpURL)
	if c.Tools.DownloadTimeout <= 0 {
		c.Tools.DownloadTimeout = defaultDownloadTimeout
	}
	flags := c.Tools.FFmpegFlags[:0]
	for _, flag := range c.Tools.FFmpegFlags {
		if flag = strings.TrimSpace(flag); flag != "" {
			flags = append(flags, flag)
		}
	}
	c.Tools.FFmpegFlags = flags
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
