package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, code := runCLI(t, env.configPath, "config", "validate")
	if code != 0 {
		t.Fatalf("config validate exit %d: %s", code, stderr)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, stderr, code = runCLI(t, "", "config", "init", "--path", target)
	if code != 0 {
		t.Fatalf("config init exit %d: %s", code, stderr)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, stderr, code = runCLI(t, "", "config", "init", "--path", target)
	if code == 0 {
		t.Fatal("expected init to refuse overwriting")
	}
	requireContains(t, stderr, "--overwrite")

	out, stderr, code = runCLI(t, target, "config", "validate")
	if code != 0 {
		t.Fatalf("validate sample exit %d: %s", code, stderr)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	out, stderr, code := runCLI(t, env.configPath, "config", "show")
	if code != 0 {
		t.Fatalf("config show exit %d: %s", code, stderr)
	}
	requireContains(t, out, "[encoding]")
	requireContains(t, out, env.cfg.Paths.StagingDir)
	requireContains(t, out, "frame_size = '8x4'")
}
