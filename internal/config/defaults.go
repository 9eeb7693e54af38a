package config

import "bapple/internal/charset"

const (
	defaultConfigPath           = "~/.config/bapple/config.toml"
	projectConfigName           = "bapple.toml"
	defaultStagingDir           = "~/.cache/bapple/staging"
	defaultLogDir               = "~/.local/share/bapple/logs"
	defaultToolsDir             = "~/.local/share/bapple/bin"
	defaultStyle                = "fg-paint"
	defaultThreshold            = 10
	defaultBackgroundBrightness = 0.2
	defaultFrameSize            = "0x0"
	defaultFilter               = "nearest"
	defaultGamma                = 1.0
	defaultZstdLevel            = "default"
	defaultAudioMode            = "auto"
	defaultDownloadTimeout      = 300
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMirror               = "https://github.com/S0raWasTaken/bapple_mirror/releases/download/latest/"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			ToolsDir:   defaultToolsDir,
		},
		Encoding: Encoding{
			Style:                defaultStyle,
			Charset:              charset.Default,
			Colorize:             true,
			Threshold:            defaultThreshold,
			BackgroundBrightness: defaultBackgroundBrightness,
			FrameSize:            defaultFrameSize,
			Filter:               defaultFilter,
			Gamma:                defaultGamma,
			ZstdLevel:            defaultZstdLevel,
			ExtractAudio:         true,
		},
		Playback: Playback{
			Audio:    defaultAudioMode,
			DropLate: true,
		},
		Tools: Tools{
			AutoDownload:    true,
			FFmpegURL:       defaultMirror + "ffmpeg",
			FFprobeURL:      defaultMirror + "ffprobe",
			YtDlpURL:        defaultMirror + "yt-dlp",
			DownloadTimeout: defaultDownloadTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
