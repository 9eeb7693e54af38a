package compile

import (
	"image"

	"bapple/internal/budget"
	"bapple/internal/config"
	"bapple/internal/frame"
	"bapple/internal/imageio"
	"bapple/internal/services"
	"bapple/internal/term"
)

// renderer resizes and encodes one image. Safe for concurrent use.
type renderer struct {
	resizer *imageio.Resizer
	encoder *frame.Encoder
	budget  budget.Controller
}

type rendered struct {
	data      []byte
	threshold uint8
	within    bool
}

func newRenderer(cfg *config.Config, size imageio.Size) (*renderer, error) {
	opts, err := cfg.FrameOptions()
	if err != nil {
		return nil, err
	}
	enc, err := frame.NewEncoder(opts)
	if err != nil {
		return nil, err
	}
	filter, err := cfg.ResizeFilter()
	if err != nil {
		return nil, err
	}
	resizer, err := imageio.NewResizer(size, filter, cfg.Encoding.Gamma)
	if err != nil {
		return nil, err
	}
	return &renderer{resizer: resizer, encoder: enc, budget: cfg.Budget()}, nil
}

func (r *renderer) render(img image.Image) rendered {
	res := r.budget.Encode(r.encoder, r.resizer.Resize(img))
	return rendered{data: res.Frame.Bytes(), threshold: res.Threshold, within: res.WithinBudget}
}

// resolveSize returns the configured grid, or the current terminal's when
// frame_size is auto. fallback is used when no terminal is attached; a zero
// fallback makes that case a configuration error.
func resolveSize(cfg *config.Config, fallback imageio.Size) (imageio.Size, error) {
	size, err := cfg.FrameSize()
	if err != nil {
		return imageio.Size{}, err
	}
	if !size.Auto() {
		return size, nil
	}
	ts, err := term.Detect()
	if err == nil {
		w, h := term.FitFrame(ts)
		return imageio.Size{Width: w, Height: h}, nil
	}
	if !fallback.Auto() {
		return fallback, nil
	}
	return imageio.Size{}, services.Wrap(services.ErrConfiguration, "compile", "frame size",
		"encoding.frame_size is auto but no terminal is attached; pass --size WxH", err)
}
