package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bapple/internal/deps"
	"bapple/internal/services"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "Manage external tools",
	}
	depsCmd.AddCommand(newDepsInstallCommand(ctx))
	return depsCmd
}

func newDepsInstallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "install [tool...]",
		Short:     "Locate or download ffmpeg, ffprobe, and yt-dlp into paths.tools_dir",
		ValidArgs: []string{string(deps.FFmpeg), string(deps.FFprobe), string(deps.YtDlp)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tools, err := parseTools(args)
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cmd, nil, "")
			if err != nil {
				return err
			}
			resolver := deps.NewResolver(cfg, logger)
			// Explicit installs download regardless of tools.auto_download.
			resolver.AutoDownload = true

			rows := make([][]string, 0, len(tools))
			for _, tool := range tools {
				source := "found"
				if _, ok, _ := resolver.Locate(tool); !ok {
					source = "downloaded"
				}
				path, err := resolver.Resolve(cmd.Context(), tool)
				if err != nil {
					return err
				}
				rows = append(rows, []string{string(tool), source, path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Tool", "Source", "Path"}, rows, false))
			return nil
		},
	}
}

func parseTools(args []string) ([]deps.Tool, error) {
	if len(args) == 0 {
		return deps.Tools, nil
	}
	tools := make([]deps.Tool, 0, len(args))
	for _, arg := range args {
		name := deps.Tool(strings.ToLower(strings.TrimSpace(arg)))
		switch name {
		case deps.FFmpeg, deps.FFprobe, deps.YtDlp:
			tools = append(tools, name)
		default:
			return nil, services.Wrap(services.ErrConfiguration, "deps", "install",
				fmt.Sprintf("unknown tool %q (want ffmpeg, ffprobe, or yt-dlp)", arg), nil)
		}
	}
	return tools, nil
}
