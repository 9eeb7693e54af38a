package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bapple/internal/compile"
	"bapple/internal/config"
	"bapple/internal/deps"
	"bapple/internal/services"
)

func newImageCommand(ctx *commandContext) *cobra.Command {
	var enc encodingFlags
	var output string

	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Render a still image as one text frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := withOverrides(base, func(c *config.Config) {
				enc.apply(cmd.Flags(), &c.Encoding)
			})
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cmd, nil, "")
			if err != nil {
				return err
			}
			compiler := compile.New(cfg, deps.NewResolver(cfg, logger), logger, compile.WithVersion(version))
			result, err := compiler.Image(services.WithSessionID(cmd.Context(), ctx.sessionID), compile.ImageOptions{
				Input:  args[0],
				Output: output,
				Stdout: cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			if result.Path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", result.Path, result.Size)
			}
			return nil
		},
	}
	enc.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "Text file to write, or - for stdout (default <stem>.txt)")
	return cmd
}
