package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"bapple/internal/archive"
	"bapple/internal/audio"
	"bapple/internal/config"
	"bapple/internal/logging"
	"bapple/internal/playback"
	"bapple/internal/services"
	"bapple/internal/term"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var (
		fps         float64
		loop        bool
		mute        bool
		audioMode   string
		audioPlayer string
		noDrop      bool
		maxFrames   int
		noCursor    bool
		summary     bool
	)

	cmd := &cobra.Command{
		Use:   "play <archive>",
		Short: "Play a .bapple archive in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			cfg, err := withOverrides(base, func(c *config.Config) {
				if flags.Changed("fps") {
					c.Playback.FPS = fps
				}
				if flags.Changed("loop") {
					c.Playback.Loop = loop
				}
				if flags.Changed("audio") {
					c.Playback.Audio = audioMode
				}
				if mute {
					c.Playback.Audio = string(audio.ModeOff)
				}
				if flags.Changed("audio-player") {
					c.Playback.AudioPlayer = audioPlayer
				}
				if flags.Changed("no-drop") {
					c.Playback.DropLate = !noDrop
				}
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			interactive := term.IsTerminal(out)
			// Keep info logs off a terminal that is showing frames.
			consoleLevel := ""
			if interactive {
				consoleLevel = "warn"
			}
			logger, err := ctx.newLogger(cmd, nil, consoleLevel)
			if err != nil {
				return err
			}

			runCtx := services.WithArchive(services.WithSessionID(cmd.Context(), ctx.sessionID), args[0])
			runCtx = services.WithStage(runCtx, "play")
			logger = logging.WithContext(runCtx, logger)

			reader, err := archive.Open(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			player, err := openAudio(cfg, reader, logger)
			if err != nil {
				return err
			}
			if player != nil {
				defer player.Close()
			}

			opts := playback.Options{
				FPS:             cfg.Playback.FPS,
				Loop:            cfg.Playback.Loop,
				MaxTicks:        maxFrames,
				DropLate:        cfg.Playback.DropLate,
				Logger:          logger,
				NoCursorControl: noCursor || !interactive,
			}
			if player != nil {
				opts.Audio = player
			}
			stats, err := playback.New(reader, out, opts).Run(runCtx)
			if err != nil {
				return err
			}
			if summary {
				fmt.Fprintf(cmd.ErrOrStderr(), "Played %d frames in %s (%d dropped, %d damaged, %d passes)\n",
					stats.Frames, stats.Elapsed.Round(time.Millisecond), stats.Dropped, stats.Damaged, stats.Passes)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&fps, "fps", 0, "Override the archive frame rate")
	cmd.Flags().BoolVarP(&loop, "loop", "l", false, "Restart from the first frame at the end")
	cmd.Flags().BoolVarP(&mute, "mute", "m", false, "Do not play the soundtrack")
	cmd.Flags().StringVar(&audioMode, "audio", "", "Audio backend: auto, external, internal, off")
	cmd.Flags().StringVar(&audioPlayer, "audio-player", "", "Preferred external player binary")
	cmd.Flags().BoolVar(&noDrop, "no-drop", false, "Render late frames instead of skipping them")
	cmd.Flags().IntVar(&maxFrames, "frames", 0, "Stop after this many frame slots (0 = no limit)")
	cmd.Flags().BoolVar(&noCursor, "no-cursor-control", false, "Write frames back to back without homing the cursor")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print playback statistics to stderr when done")
	return cmd
}

// openAudio returns nil when there is nothing to play. A missing player is
// a warning unless the external backend was requested explicitly.
func openAudio(cfg *config.Config, reader *archive.Reader, logger *slog.Logger) (audio.Player, error) {
	mode := cfg.AudioMode()
	if mode == audio.ModeOff || !reader.Metadata().AudioPresent {
		return nil, nil
	}
	data, err := reader.Audio()
	if err != nil {
		return nil, err
	}
	player, err := audio.New(data, audio.Options{Mode: mode, Player: cfg.Playback.AudioPlayer, Logger: logger})
	if err != nil {
		if mode == audio.ModeExternal {
			return nil, services.Wrap(services.ErrToolUnavailable, "play", "audio", "no external audio player found", err)
		}
		logging.WarnWithContext(logger, "audio unavailable; playing without sound", "audio_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "frames play without sound"),
			logging.String(logging.FieldErrorHint, "install mpv or ffplay, or pass --mute"),
		)
		return nil, nil
	}
	return player, nil
}
