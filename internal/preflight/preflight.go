package preflight

import (
	"bapple/internal/config"
	"bapple/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every check relevant to cfg.
func RunAll(cfg *config.Config, resolver *deps.Resolver) []Result {
	if cfg == nil {
		return nil
	}
	results := Directories(cfg)
	if resolver != nil {
		results = append(results, Tools(resolver)...)
	}
	results = append(results, CheckAudio(cfg.AudioMode(), cfg.Playback.AudioPlayer))
	results = append(results, CheckTerminal())
	return results
}

// Directories checks the staging, log, and tools directories plus the
// output directory when one is configured.
func Directories(cfg *config.Config) []Result {
	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Tools directory", cfg.Paths.ToolsDir),
	}
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}
	return results
}

// Failed returns the non-optional results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
