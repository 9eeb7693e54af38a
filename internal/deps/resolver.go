package deps

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"bapple/internal/config"
	"bapple/internal/logging"
	"bapple/internal/services"
)

// Resolver locates external tools. Lookup order: explicit configured path,
// PATH, the private tools directory, then a download when enabled.
type Resolver struct {
	Configured   map[Tool]string
	ToolsDir     string
	AutoDownload bool
	Installer    *Installer
	Logger       *slog.Logger
}

// NewResolver builds a resolver from the tools and paths sections. The
// returned resolver opens the registry lazily through its installer.
func NewResolver(cfg *config.Config, logger *slog.Logger) *Resolver {
	timeout := time.Duration(cfg.Tools.DownloadTimeout) * time.Second
	return &Resolver{
		Configured: map[Tool]string{
			FFmpeg:  cfg.Tools.FFmpeg,
			FFprobe: cfg.Tools.FFprobe,
			YtDlp:   cfg.Tools.YtDlp,
		},
		ToolsDir:     cfg.Paths.ToolsDir,
		AutoDownload: cfg.Tools.AutoDownload,
		Installer: &Installer{
			Dir: cfg.Paths.ToolsDir,
			URLs: map[Tool]string{
				FFmpeg:  cfg.Tools.FFmpegURL,
				FFprobe: cfg.Tools.FFprobeURL,
				YtDlp:   cfg.Tools.YtDlpURL,
			},
			Client: &http.Client{Timeout: timeout},
			Logger: logger,
		},
		Logger: logger,
	}
}

// Resolve returns an executable path for tool or an error wrapping
// services.ErrToolUnavailable.
func (r *Resolver) Resolve(ctx context.Context, tool Tool) (string, error) {
	if path, ok, err := r.Locate(tool); ok || err != nil {
		return path, err
	}
	if !r.AutoDownload || r.Installer == nil {
		return "", services.Wrap(services.ErrToolUnavailable, "deps", "resolve",
			fmt.Sprintf("%s not found on PATH or in %s; install it or enable tools.auto_download", tool, r.ToolsDir), nil)
	}
	return r.install(ctx, tool)
}

// Locate finds tool without downloading. ok is false when it is simply
// absent; err is set when a configured path is unusable.
func (r *Resolver) Locate(tool Tool) (path string, ok bool, err error) {
	if configured := strings.TrimSpace(r.Configured[tool]); configured != "" {
		resolved, lookErr := exec.LookPath(configured)
		if lookErr != nil {
			return "", false, services.Wrap(services.ErrToolUnavailable, "deps", "resolve",
				fmt.Sprintf("configured %s %q is not executable", tool, configured), lookErr)
		}
		return resolved, true, nil
	}
	if resolved, lookErr := exec.LookPath(string(tool)); lookErr == nil {
		return resolved, true, nil
	}
	if r.ToolsDir != "" {
		candidate := filepath.Join(r.ToolsDir, executableName(string(tool)))
		if isExecutableFile(candidate) {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

// ResolveAll resolves each tool in order, stopping at the first failure.
func (r *Resolver) ResolveAll(ctx context.Context, tools ...Tool) (map[Tool]string, error) {
	out := make(map[Tool]string, len(tools))
	for _, tool := range tools {
		path, err := r.Resolve(ctx, tool)
		if err != nil {
			return nil, err
		}
		out[tool] = path
	}
	return out, nil
}

func (r *Resolver) install(ctx context.Context, tool Tool) (string, error) {
	if r.Installer.Registry == nil && r.Installer.Dir != "" {
		if err := ensureDir(r.Installer.Dir); err == nil {
			registry, err := OpenRegistry(r.Installer.Dir)
			if err != nil {
				logging.WarnWithContext(logging.NewComponentLogger(r.Logger, "deps"),
					"tool registry unavailable", "tool_registry_unavailable",
					logging.Error(err),
					logging.String(logging.FieldImpact, "downloads proceed without being recorded"),
				)
			} else {
				r.Installer.Registry = registry
				defer func() {
					_ = registry.Close()
					r.Installer.Registry = nil
				}()
			}
		}
	}
	return r.Installer.Install(ctx, tool)
}
