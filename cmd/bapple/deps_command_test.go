package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"bapple/internal/deps"
	"bapple/internal/testsupport"
)

func TestDepsInstallDownloadsIntoToolsDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#!/bin/sh\necho " + r.URL.Path + "\n"))
	}))
	t.Cleanup(srv.Close)

	base := t.TempDir()
	t.Setenv("HOME", base)
	t.Setenv("PATH", t.TempDir())
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpegURL = srv.URL + "/ffmpeg"
	cfg.Tools.FFprobeURL = srv.URL + "/ffprobe"
	cfg.Tools.YtDlpURL = srv.URL + "/yt-dlp"
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, stderr, code := runCLI(t, configPath, "deps", "install", "ffmpeg", "yt-dlp")
	if code != 0 {
		t.Fatalf("deps install exit %d: %s", code, stderr)
	}
	requireContains(t, out, "downloaded")
	for _, name := range []string{"ffmpeg", "yt-dlp"} {
		info, err := os.Stat(filepath.Join(cfg.Paths.ToolsDir, name))
		if err != nil || info.Mode()&0o111 == 0 {
			t.Fatalf("%s not installed executable: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ToolsDir, "ffprobe")); !os.IsNotExist(err) {
		t.Fatalf("ffprobe should not be installed, stat err=%v", err)
	}

	out, stderr, code = runCLI(t, configPath, "deps", "install", "ffmpeg")
	if code != 0 {
		t.Fatalf("second install exit %d: %s", code, stderr)
	}
	requireContains(t, out, "found")

	out, _, _ = runCLI(t, configPath, "status")
	requireContains(t, out, "Downloaded tools")
	requireContains(t, out, filepath.Join(cfg.Paths.ToolsDir, "yt-dlp"))
}

func TestParseTools(t *testing.T) {
	tools, err := parseTools(nil)
	if err != nil || len(tools) != len(deps.Tools) {
		t.Fatalf("expected every tool, got %v %v", tools, err)
	}
	tools, err = parseTools([]string{" FFprobe "})
	if err != nil || len(tools) != 1 || tools[0] != deps.FFprobe {
		t.Fatalf("unexpected parse: %v %v", tools, err)
	}
}
