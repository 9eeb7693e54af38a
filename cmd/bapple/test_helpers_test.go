package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bapple/internal/config"
	"bapple/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	framesDir  string
}

// setupCLITestEnv writes a config backed by temp directories and puts fake
// ffmpeg/ffprobe/yt-dlp on PATH.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	framesDir := filepath.Join(base, "frames")
	testsupport.WriteFrames(t, framesDir, 3, 16, 8)
	opts = append([]testsupport.ConfigOption{
		testsupport.WithOutputDir("out"),
		testsupport.WithScriptedBinary("ffprobe", testsupport.FakeFFprobe("24/1", true)),
		testsupport.WithScriptedBinary("ffmpeg", testsupport.FakeFFmpeg(framesDir, []byte("ID3audio"), "")),
		testsupport.WithScriptedBinary("yt-dlp", testsupport.FakeYtDlp()),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)

	configPath := filepath.Join(homeDir, ".config", "bapple", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base, framesDir: framesDir}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// runCLI executes the command tree and returns stdout, stderr, and the exit code.
func runCLI(t *testing.T, configPath string, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	code := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func (env *cliTestEnv) writeInput(t *testing.T) string {
	t.Helper()
	input := filepath.Join(env.baseDir, "clip.mp4")
	if err := os.WriteFile(input, []byte("video"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return input
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
