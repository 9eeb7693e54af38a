package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bapple/internal/deps"
	"bapple/internal/logging"
	"bapple/internal/preflight"
	"bapple/internal/services"
	"bapple/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check directories, external tools, audio, and terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			source := ctx.configPath
			if !ctx.configExists {
				source += " (not found; defaults in use)"
			}
			lines = append(lines, renderStatusLine("Config file", statusInfo, source, colorize))
			lines = append(lines, renderStatusLine("Log file", statusInfo, cfg.LogFile(), colorize))
			if usage, err := staging.Measure(cfg.Paths.StagingDir); err == nil && usage.Dirs > 0 {
				lines = append(lines, renderStatusLine("Staging", statusInfo,
					fmt.Sprintf("%d work directories, %s, oldest %s", usage.Dirs,
						humanize.IBytes(uint64(usage.Bytes)), humanize.Time(usage.Oldest)), colorize))
			}
			lines = append(lines, "")

			results := preflight.RunAll(cfg, deps.NewResolver(cfg, logging.NewNop()))
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			lines = append(lines, checkLines(results, colorize)...)

			installed, err := listInstalled(cmd, cfg.Paths.ToolsDir)
			if err != nil {
				lines = append(lines, "", renderStatusLine("Tool registry", statusWarn, err.Error(), colorize))
			} else if len(installed) > 0 {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Downloaded tools", colorize)...)
				for _, entry := range installed {
					lines = append(lines, renderStatusLine(string(entry.Name), statusInfo, entry.Describe(), colorize))
				}
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if failed := preflight.Failed(results); len(failed) > 0 {
				names := make([]string, len(failed))
				for i, r := range failed {
					names[i] = r.Name
				}
				return services.Wrap(services.ErrConfiguration, "status", "preflight",
					fmt.Sprintf("%d checks failed: %s", len(failed), strings.Join(names, ", ")), nil)
			}
			return nil
		},
	}
}

// listInstalled reads the registry without creating it.
func listInstalled(cmd *cobra.Command, dir string) ([]deps.Installed, error) {
	if _, err := os.Stat(filepath.Join(dir, deps.RegistryFile)); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	registry, err := deps.OpenRegistry(dir)
	if err != nil {
		return nil, err
	}
	defer registry.Close()
	return registry.List(cmd.Context())
}
