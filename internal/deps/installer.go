package deps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"bapple/internal/logging"
	"bapple/internal/services"
)

const (
	installLockName   = ".install.lock"
	lockRetryInterval = 100 * time.Millisecond
)

// Installer downloads tool binaries into a private directory.
type Installer struct {
	Dir      string
	URLs     map[Tool]string
	Client   *http.Client
	Registry *Registry
	Logger   *slog.Logger
}

// Install downloads tool into Dir and returns its path. Concurrent bapple
// processes serialize on a lock file; a binary installed by another process
// while waiting is reused.
func (i *Installer) Install(ctx context.Context, tool Tool) (string, error) {
	url := i.URLs[tool]
	if url == "" {
		return "", services.Wrap(services.ErrToolUnavailable, "deps", "install", fmt.Sprintf("no download URL for %s", tool), nil)
	}
	if err := os.MkdirAll(i.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create tools directory: %w", err)
	}

	lock := flock.New(filepath.Join(i.Dir, installLockName))
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrStopped, "deps", "install", string(tool), ctx.Err())
		}
		return "", fmt.Errorf("acquire install lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("acquire install lock: %s busy", i.Dir)
	}
	defer func() { _ = lock.Unlock() }()

	dest := filepath.Join(i.Dir, executableName(string(tool)))
	if isExecutableFile(dest) {
		return dest, nil
	}

	logger := logging.NewComponentLogger(i.Logger, "deps")
	logger.Info("downloading tool", logging.String("tool", string(tool)), logging.String("url", url))

	entry, err := i.download(ctx, tool, url, dest)
	if err != nil {
		return "", err
	}
	if i.Registry != nil {
		if err := i.Registry.Record(ctx, entry); err != nil {
			logging.WarnWithContext(logger, "tool registry update failed", "tool_registry_failed",
				logging.String("tool", string(tool)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "tool works but is not listed by bapple status"),
			)
		}
	}
	logger.Info("tool installed",
		logging.String("tool", string(tool)),
		logging.String("path", dest),
		logging.Int64("download_bytes", entry.Size),
	)
	return dest, nil
}

func (i *Installer) download(ctx context.Context, tool Tool, url, dest string) (Installed, error) {
	fail := func(msg string, err error) (Installed, error) {
		if ctx.Err() != nil {
			return Installed{}, services.Wrap(services.ErrStopped, "deps", "download", string(tool), ctx.Err())
		}
		return Installed{}, services.Wrap(services.ErrToolUnavailable, "deps", "download", msg, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(fmt.Sprintf("build request for %s", url), err)
	}
	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(fmt.Sprintf("fetch %s", url), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Sprintf("fetch %s: %s", url, resp.Status), nil)
	}

	tmp, err := os.CreateTemp(i.Dir, "."+string(tool)+"-*")
	if err != nil {
		return Installed{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fail(fmt.Sprintf("download %s", url), err)
	}
	if size == 0 {
		return fail(fmt.Sprintf("download %s: empty body", url), nil)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmp.Name(), 0o755); err != nil {
			return Installed{}, fmt.Errorf("mark %s executable: %w", tool, err)
		}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Installed{}, fmt.Errorf("install %s: %w", tool, err)
	}
	return Installed{
		Name:        tool,
		Path:        dest,
		SourceURL:   url,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		Size:        size,
		InstalledAt: time.Now(),
	}, nil
}

// Describe renders an installed entry for status output.
func (e Installed) Describe() string {
	return fmt.Sprintf("%s (%s, sha256 %.12s, installed %s)", e.Path, humanize.IBytes(uint64(max(e.Size, 0))),
		e.SHA256, humanize.Time(e.InstalledAt))
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
