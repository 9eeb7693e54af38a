package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"bapple/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Tool downloads are disabled and audio is off so tests never reach the
// network or a sound device.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ToolsDir = filepath.Join(base, "tools")
	cfgVal.Tools.AutoDownload = false
	cfgVal.Playback.Audio = "off"
	cfgVal.Encoding.FrameSize = "8x4"
	cfgVal.Encoding.Workers = 2

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithEncoding adjusts the encoding section.
func WithEncoding(fn func(*config.Encoding)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Encoding)
	}
}

// WithOutputDir sets paths.output_dir under the test's base directory.
func WithOutputDir(name string) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir output dir: %v", err)
		}
		b.cfg.Paths.OutputDir = dir
	}
}

// WithStubbedBinaries writes stub executables that exit 0 and prepends
// their directory to PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			StubBinary(b.t, b.binDir(), name, "exit 0\n")
		}
		PrependPath(b.t, b.binDir())
	}
}

// WithScriptedBinary installs name with the given shell body on PATH.
func WithScriptedBinary(name, body string) ConfigOption {
	return func(b *configBuilder) {
		StubBinary(b.t, b.binDir(), name, body)
		PrependPath(b.t, b.binDir())
	}
}

func (b *configBuilder) binDir() string {
	dir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	return dir
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
