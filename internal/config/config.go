package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"bapple/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	ToolsDir   string `toml:"tools_dir"`
	OutputDir  string `toml:"output_dir"`
}

// Encoding contains frame conversion settings used by compile and image.
type Encoding struct {
	Style                string  `toml:"style"`
	Charset              string  `toml:"charset"`
	Colorize             bool    `toml:"colorize"`
	Threshold            int     `toml:"threshold"`
	DynamicCompression   bool    `toml:"dynamic_compression"`
	MaxFrameKiB          float64 `toml:"max_frame_kib"`
	BackgroundBrightness float64 `toml:"background_brightness"`
	FrameSize            string  `toml:"frame_size"`
	Filter               string  `toml:"filter"`
	Gamma                float64 `toml:"gamma"`
	RowScoped            bool    `toml:"row_scoped"`
	Workers              int     `toml:"workers"`
	ZstdLevel            string  `toml:"zstd_level"`
	ExtractAudio         bool    `toml:"extract_audio"`
}

// Playback contains terminal playback settings.
type Playback struct {
	FPS         float64 `toml:"fps"`
	Loop        bool    `toml:"loop"`
	Audio       string  `toml:"audio"`
	AudioPlayer string  `toml:"audio_player"`
	DropLate    bool    `toml:"drop_late"`
}

// Tools contains external binary locations and download settings.
type Tools struct {
	FFmpeg          string   `toml:"ffmpeg"`
	FFprobe         string   `toml:"ffprobe"`
	YtDlp           string   `toml:"yt_dlp"`
	AutoDownload    bool     `toml:"auto_download"`
	FFmpegURL       string   `toml:"ffmpeg_url"`
	FFprobeURL      string   `toml:"ffprobe_url"`
	YtDlpURL        string   `toml:"yt_dlp_url"`
	DownloadTimeout int      `toml:"download_timeout"`
	FFmpegFlags     []string `toml:"ffmpeg_flags"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bapple.
//
// Configuration sections by subsystem:
//   - Paths: staging, logs, downloaded tools, compiled archives
//   - Encoding: style, charset, compression, and resize settings
//   - Playback: frame rate override, looping, and audio backend
//   - Tools: ffmpeg/ffprobe/yt-dlp locations and auto-download
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Encoding Encoding `toml:"encoding"`
	Playback Playback `toml:"playback"`
	Tools    Tools    `toml:"tools"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, describeDecodeError(err))
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func describeDecodeError(err error) error {
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Errorf("line %d column %d: %w", row, col, err)
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		return errors.New(strings.TrimSpace(strictErr.String()))
	}
	return err
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the staging, log, and tools directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.ToolsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkerCount returns the encode worker pool size.
func (c *Config) WorkerCount() int {
	if c.Encoding.Workers > 0 {
		return c.Encoding.Workers
	}
	return runtime.NumCPU()
}

// LogFile returns the path of the persistent log file.
func (c *Config) LogFile() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "bapple.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
