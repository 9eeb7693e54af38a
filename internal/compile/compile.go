package compile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bapple/internal/archive"
	"bapple/internal/config"
	"bapple/internal/deps"
	"bapple/internal/fileutil"
	"bapple/internal/imageio"
	"bapple/internal/logging"
	"bapple/internal/media/ffmpeg"
	"bapple/internal/media/ffprobe"
	"bapple/internal/media/ytdlp"
	"bapple/internal/preflight"
	"bapple/internal/services"
	"bapple/internal/staging"
)

// ToolResolver locates external binaries.
type ToolResolver interface {
	Resolve(ctx context.Context, tool deps.Tool) (string, error)
}

// Options describes one compile run. Zero values fall back to config.
type Options struct {
	// Input is a local video path or an http(s) URL.
	Input string
	// Output is the archive path; empty derives <stem>.bapple in
	// paths.output_dir or the working directory.
	Output string
	// FPS overrides the probed frame rate when positive.
	FPS float64
	// NoAudio skips soundtrack extraction.
	NoAudio bool
	// DeleteDownload discards a URL download instead of keeping
	// <stem>.mp4 next to the archive.
	DeleteDownload bool
}

// Result summarizes a finished archive.
type Result struct {
	Path          string
	Metadata      archive.Metadata
	Bytes         int64
	AudioBytes    int
	Download      string
	MaxFrameBytes int
	OverBudget    int
	Elapsed       time.Duration
}

// Compiler runs compile and image jobs against one configuration.
type Compiler struct {
	cfg      *config.Config
	tools    ToolResolver
	logger   *slog.Logger
	progress io.Writer
	version  string
	now      func() time.Time
}

// Option customizes a Compiler.
type Option func(*Compiler)

// WithProgress sets where the progress bar is drawn; non-terminals get
// sampled progress logs instead.
func WithProgress(w io.Writer) Option {
	return func(c *Compiler) { c.progress = w }
}

// WithVersion records the encoder version in archive metadata.
func WithVersion(v string) Option {
	return func(c *Compiler) { c.version = v }
}

// New constructs a Compiler.
func New(cfg *config.Config, tools ToolResolver, logger *slog.Logger, opts ...Option) *Compiler {
	c := &Compiler{
		cfg:     cfg,
		tools:   tools,
		logger:  logging.NewComponentLogger(logger, "compile"),
		version: "dev",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds an archive from opts.Input.
func (c *Compiler) Compile(ctx context.Context, opts Options) (result Result, err error) {
	started := c.now()
	input := strings.TrimSpace(opts.Input)
	if input == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "compile", "input", "no input video given", nil)
	}
	remote := ytdlp.IsURL(input)
	if !remote {
		if _, statErr := os.Stat(input); statErr != nil {
			return Result{}, services.Wrap(services.ErrConfiguration, "compile", "input", input, statErr)
		}
	}
	outPath := c.outputPath(input, opts.Output)
	ctx = services.WithArchive(ctx, outPath)

	needed := []deps.Tool{deps.FFmpeg, deps.FFprobe}
	if remote {
		needed = append(needed, deps.YtDlp)
	}
	tools := make(map[deps.Tool]string, len(needed))
	for _, tool := range needed {
		bin, resolveErr := c.tools.Resolve(ctx, tool)
		if resolveErr != nil {
			return Result{}, resolveErr
		}
		tools[tool] = bin
	}

	staging.CleanStale(c.cfg.Paths.StagingDir, staging.DefaultMaxAge, c.logger)
	workDir, err := staging.Create(c.cfg.Paths.StagingDir)
	if err != nil {
		check := preflight.CheckDirectoryAccess("staging", c.cfg.Paths.StagingDir)
		return Result{}, services.Wrap(services.ErrConfiguration, "compile", "staging", check.Detail, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logging.WarnWithContext(c.logger, "staging cleanup failed", "staging_cleanup_failed",
				logging.String("path", workDir),
				logging.Error(rmErr),
				logging.String(logging.FieldImpact, "temporary frames remain on disk"),
			)
		}
	}()

	defer func() {
		if err != nil && ctx.Err() != nil && !errors.Is(err, services.ErrStopped) {
			err = services.Wrap(services.ErrStopped, "compile", "run", "cancelled", err)
		}
	}()

	source := input
	if remote {
		source, err = c.download(stageCtx(ctx, "download"), tools[deps.YtDlp], input, workDir)
		if err != nil {
			return Result{}, err
		}
	}

	probe, err := ffprobe.Inspect(stageCtx(ctx, "probe"), tools[deps.FFprobe], source)
	if err != nil {
		return Result{}, err
	}
	fps := opts.FPS
	if fps <= 0 {
		if fps, err = probe.FrameRate(); err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, "compile", "probe", "cannot determine frame rate; pass --fps", err)
		}
	}

	size, err := resolveSize(c.cfg, imageio.Size{})
	if err != nil {
		return Result{}, err
	}
	render, err := newRenderer(c.cfg, size)
	if err != nil {
		return Result{}, err
	}

	runner := ffmpeg.New(ffmpeg.WithBinary(tools[deps.FFmpeg]), ffmpeg.WithExtraFlags(c.cfg.Tools.FFmpegFlags))
	extractCtx := stageCtx(ctx, "extract")
	frames, err := runner.ExtractFrames(extractCtx, source, filepath.Join(workDir, "frames"))
	if err != nil {
		return Result{}, err
	}
	audio := c.extractAudio(extractCtx, runner, probe, source, workDir, opts.NoAudio)

	frameOpts, _ := c.cfg.FrameOptions()
	meta := archive.Metadata{
		Version:         archive.Version,
		FPS:             fps,
		FrametimeMicros: int64(1e6/fps + 0.5),
		FrameCount:      len(frames),
		AudioPresent:    len(audio) > 0,
		Width:           size.Width,
		Height:          size.Height,
		Style:           frameOpts.Style.String(),
		Charset:         c.cfg.Encoding.Charset,
		Colorized:       c.cfg.Encoding.Colorize,
		EncoderVersion:  c.version,
		ArchiveID:       uuid.NewString(),
		CreatedAt:       c.now().UTC().Truncate(time.Second),
		Source:          input,
	}

	writer, err := archive.Create(outPath, archive.WithCompressionLevel(c.cfg.CompressionLevel()))
	if err != nil {
		return Result{}, err
	}
	finalized := false
	defer func() {
		if !finalized {
			if abortErr := writer.Abort(); abortErr != nil {
				c.logger.Debug("abort archive failed", logging.Error(abortErr))
			}
		}
	}()
	if err = writer.WriteMetadata(meta); err != nil {
		return Result{}, err
	}

	encodeCtx := stageCtx(ctx, "encode")
	logger := logging.WithContext(encodeCtx, c.logger)
	logger.Info("encoding frames",
		logging.Int("frames", len(frames)),
		logging.Float64("fps", fps),
		logging.String("size", size.String()),
		logging.String("style", meta.Style),
		logging.Int("workers", c.cfg.WorkerCount()),
	)

	bar := newProgress(c.progress, len(frames), "encode", logger)
	err = runPipeline(encodeCtx, len(frames), c.cfg.WorkerCount(),
		func(_ context.Context, i int) (rendered, error) {
			img, decodeErr := imageio.DecodeFile(frames[i])
			if decodeErr != nil {
				return rendered{}, services.Wrap(services.ErrExternalTool, "compile", "decode frame",
					fmt.Sprintf("frame %d", i), decodeErr)
			}
			out := render.render(img)
			// Extracted PNGs are only needed once.
			_ = os.Remove(frames[i])
			return out, nil
		},
		func(i int, f rendered) error {
			if writeErr := writer.WriteFrame(f.data); writeErr != nil {
				return fmt.Errorf("write frame %d: %w", i, writeErr)
			}
			result.MaxFrameBytes = max(result.MaxFrameBytes, len(f.data))
			if !f.within {
				result.OverBudget++
			}
			bar.Advance()
			return nil
		},
	)
	bar.Finish()
	if err != nil {
		return Result{}, err
	}
	if err = writer.Finalize(audio); err != nil {
		return Result{}, err
	}
	finalized = true

	result.Path = outPath
	result.Metadata = meta
	result.AudioBytes = len(audio)
	result.Bytes = writer.BytesWritten()
	if remote && !opts.DeleteDownload {
		result.Download = c.keepDownload(source, outPath)
	}
	result.Elapsed = c.now().Sub(started)

	if result.OverBudget > 0 && c.cfg.Budget().Active() {
		logging.WarnWithContext(logger, "frames exceed size ceiling", "frame_budget_exceeded",
			logging.Int("over_budget", result.OverBudget),
			logging.Int64("frame_bytes", int64(result.MaxFrameBytes)),
			logging.String(logging.FieldErrorHint, "raise encoding.max_frame_kib or reduce frame size"),
			logging.String(logging.FieldImpact, "some frames are larger than the configured ceiling"),
		)
	}
	logger.Info("archive written",
		logging.String("output", outPath),
		logging.Int("frames", writer.FramesWritten()),
		logging.Int64("archive_bytes", result.Bytes),
		logging.Int64("audio_bytes", int64(result.AudioBytes)),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (c *Compiler) download(ctx context.Context, bin, rawURL, workDir string) (string, error) {
	dest := filepath.Join(workDir, "download.mp4")
	logging.WithContext(ctx, c.logger).Info("downloading video", logging.String("source", rawURL))
	if err := ytdlp.Download(ctx, bin, rawURL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (c *Compiler) extractAudio(ctx context.Context, runner *ffmpeg.Runner, probe ffprobe.Result, source, workDir string, skip bool) []byte {
	if skip || !c.cfg.Encoding.ExtractAudio || !probe.HasAudio() {
		return nil
	}
	logger := logging.WithContext(ctx, c.logger)
	dest := filepath.Join(workDir, ffmpeg.AudioFile)
	if err := runner.ExtractAudio(ctx, source, dest); err != nil {
		logging.WarnWithContext(logger, "audio extraction failed", "audio_extract_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "pass --no-audio to silence this warning"),
			logging.String(logging.FieldImpact, "archive is written without audio"),
		)
		return nil
	}
	data, err := os.ReadFile(dest)
	if err != nil || len(data) == 0 {
		logging.WarnWithContext(logger, "audio extraction produced no data", "audio_extract_empty",
			logging.String(logging.FieldImpact, "archive is written without audio"),
		)
		return nil
	}
	return data
}

// keepDownload moves the downloaded video next to the archive.
func (c *Compiler) keepDownload(source, outPath string) string {
	dest := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".mp4"
	if err := fileutil.MoveFile(source, dest); err != nil {
		logging.WarnWithContext(c.logger, "could not keep downloaded video", "download_keep_failed",
			logging.String("path", dest),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the download is discarded with the staging directory"),
		)
		return ""
	}
	return dest
}

func (c *Compiler) outputPath(input, output string) string {
	if output = strings.TrimSpace(output); output != "" {
		if filepath.Ext(output) == "" {
			output += archive.Extension
		}
		return output
	}
	dir := c.cfg.Paths.OutputDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, inputStem(input)+archive.Extension)
}

// inputStem names output files after the input: the file name without
// extension, or for URLs the last path segment (YouTube's v parameter for
// watch links).
func inputStem(input string) string {
	if ytdlp.IsURL(input) {
		parsed, err := url.Parse(input)
		if err != nil {
			return "video"
		}
		if v := parsed.Query().Get("v"); v != "" {
			return sanitizeStem(v)
		}
		return sanitizeStem(strings.TrimSuffix(path.Base(parsed.Path), path.Ext(parsed.Path)))
	}
	base := filepath.Base(input)
	return sanitizeStem(strings.TrimSuffix(base, filepath.Ext(base)))
}

func sanitizeStem(stem string) string {
	stem = strings.TrimSpace(stem)
	if stem == "" || stem == "." || stem == "/" {
		return "video"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, stem)
}

func stageCtx(ctx context.Context, stage string) context.Context {
	return services.WithStage(ctx, stage)
}
