package compile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bapple/internal/imageio"
	"bapple/internal/logging"
	"bapple/internal/services"
	"bapple/internal/term"
)

// ImageOptions describes one still-image conversion.
type ImageOptions struct {
	Input string
	// Output is the text file to write. Empty derives <stem>.txt; "-" writes
	// to Stdout.
	Output string
	Stdout io.Writer
}

// ImageResult summarizes a still-image conversion.
type ImageResult struct {
	// Path is empty when the frame went to Stdout.
	Path      string
	Size      imageio.Size
	Bytes     int
	Threshold uint8
}

// Image renders a single picture to text. No external tools are involved.
func (c *Compiler) Image(ctx context.Context, opts ImageOptions) (ImageResult, error) {
	ctx = services.WithStage(ctx, "image")
	input := strings.TrimSpace(opts.Input)
	if input == "" {
		return ImageResult{}, services.Wrap(services.ErrConfiguration, "image", "input", "no input image given", nil)
	}
	img, err := imageio.DecodeFile(input)
	if err != nil {
		return ImageResult{}, services.Wrap(services.ErrConfiguration, "image", "decode", input, err)
	}
	bounds := img.Bounds()
	size, err := resolveSize(c.cfg, imageio.Size{Width: bounds.Dx(), Height: bounds.Dy()})
	if err != nil {
		return ImageResult{}, err
	}
	render, err := newRenderer(c.cfg, size)
	if err != nil {
		return ImageResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ImageResult{}, services.Wrap(services.ErrStopped, "image", "render", "cancelled", err)
	}
	out := render.render(img)
	text := bytes.Clone(out.data)
	if !bytes.HasSuffix(text, []byte(term.Reset)) {
		text = append(text, term.Reset...)
	}
	text = append(text, '\n')

	result := ImageResult{Size: size, Bytes: len(out.data), Threshold: out.threshold}
	switch target := strings.TrimSpace(opts.Output); target {
	case "-":
		w := opts.Stdout
		if w == nil {
			w = os.Stdout
		}
		if _, err := w.Write(text); err != nil {
			return ImageResult{}, fmt.Errorf("write frame: %w", err)
		}
	default:
		if target == "" {
			dir := c.cfg.Paths.OutputDir
			if dir == "" {
				dir = "."
			}
			target = filepath.Join(dir, inputStem(input)+".txt")
		}
		if err := os.WriteFile(target, text, 0o644); err != nil {
			return ImageResult{}, fmt.Errorf("write %s: %w", target, err)
		}
		result.Path = target
	}

	logging.WithContext(ctx, c.logger).Info("image rendered",
		logging.String("input", input),
		logging.String("output", result.Path),
		logging.String("size", size.String()),
		logging.Int64("frame_bytes", int64(result.Bytes)),
	)
	return result, nil
}
