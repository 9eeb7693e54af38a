package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bapple/internal/compile"
	"bapple/internal/config"
	"bapple/internal/deps"
	"bapple/internal/services"
)

func newCompileCommand(ctx *commandContext) *cobra.Command {
	var enc encodingFlags
	var (
		output         string
		sourceURL      string
		fps            float64
		noAudio        bool
		deleteDownload bool
	)

	cmd := &cobra.Command{
		Use:   "compile [video] [-- ffmpeg flags...]",
		Short: "Compile a video file or URL into a .bapple archive",
		Example: `  bapple compile clip.mp4
  bapple compile --url https://www.youtube.com/watch?v=FtutLA63Cp8 --size 120x40
  bapple compile clip.mp4 -- -vf hflip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, extra, err := splitInputArgs(cmd, args, sourceURL)
			if err != nil {
				return err
			}
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := withOverrides(base, func(c *config.Config) {
				enc.apply(cmd.Flags(), &c.Encoding)
				if len(extra) > 0 {
					c.Tools.FFmpegFlags = append(c.Tools.FFmpegFlags, extra...)
				}
			})
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cmd, nil, "")
			if err != nil {
				return err
			}

			compiler := compile.New(cfg, deps.NewResolver(cfg, logger), logger,
				compile.WithProgress(cmd.ErrOrStderr()),
				compile.WithVersion(version),
			)
			runCtx := services.WithSessionID(cmd.Context(), ctx.sessionID)
			result, err := compiler.Compile(runCtx, compile.Options{
				Input:          input,
				Output:         output,
				FPS:            fps,
				NoAudio:        noAudio,
				DeleteDownload: deleteDownload,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%d frames, %s, %s)\n",
				result.Path,
				result.Metadata.FrameCount,
				humanize.IBytes(uint64(result.Bytes)),
				result.Elapsed.Round(time.Millisecond),
			)
			if result.Download != "" {
				fmt.Fprintf(out, "Kept download at %s\n", result.Download)
			}
			if result.OverBudget > 0 {
				fmt.Fprintf(out, "%d frames exceed the %.1f KiB ceiling\n", result.OverBudget, cfg.Encoding.MaxFrameKiB)
			}
			return nil
		},
	}

	enc.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (default <stem>.bapple in paths.output_dir)")
	cmd.Flags().StringVarP(&sourceURL, "url", "u", "", "Download the video with yt-dlp instead of reading a file")
	cmd.Flags().Float64Var(&fps, "fps", 0, "Override the probed frame rate")
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "Do not extract or store the soundtrack")
	cmd.Flags().BoolVar(&deleteDownload, "delete-download", false, "Discard the downloaded video after compiling")
	return cmd
}

// splitInputArgs separates the input from ffmpeg flags given after "--".
func splitInputArgs(cmd *cobra.Command, args []string, sourceURL string) (string, []string, error) {
	positional, extra := args, []string(nil)
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		positional, extra = args[:dash], args[dash:]
	}
	sourceURL = strings.TrimSpace(sourceURL)
	switch {
	case sourceURL != "" && len(positional) > 0:
		return "", nil, services.Wrap(services.ErrConfiguration, "cli", "compile", "pass either a video path or --url, not both", nil)
	case sourceURL != "":
		return sourceURL, extra, nil
	case len(positional) == 1:
		return positional[0], extra, nil
	case len(positional) == 0:
		return "", nil, services.Wrap(services.ErrConfiguration, "cli", "compile", "a video path or --url is required", nil)
	default:
		return "", nil, services.Wrap(services.ErrConfiguration, "cli", "compile",
			fmt.Sprintf("expected one video, got %d (put ffmpeg flags after --)", len(positional)), nil)
	}
}
