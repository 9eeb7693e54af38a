package main

import (
	"github.com/spf13/pflag"

	"bapple/internal/config"
)

// encodingFlags mirrors [encoding]; only flags the user set are applied.
type encodingFlags struct {
	style                string
	charset              string
	monochrome           bool
	threshold            int
	dynamic              bool
	maxFrameKiB          float64
	backgroundBrightness float64
	size                 string
	filter               string
	gamma                float64
	rowScoped            bool
	workers              int
	zstdLevel            string
}

func (f *encodingFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.style, "style", "s", "", "Render style: fg-paint, bg-paint, bg-only, mixed")
	fs.StringVar(&f.charset, "charset", "", "Glyphs ordered dark to bright")
	fs.BoolVar(&f.monochrome, "monochrome", false, "Emit glyphs without color escapes")
	fs.IntVarP(&f.threshold, "threshold", "t", 0, "Base color compression threshold (0-255)")
	fs.BoolVarP(&f.dynamic, "dynamic", "d", false, "Raise the threshold per frame to stay under --max-frame-kib")
	fs.Float64Var(&f.maxFrameKiB, "max-frame-kib", 0, "Per-frame size ceiling in KiB for dynamic compression")
	fs.Float64Var(&f.backgroundBrightness, "bg-brightness", 0, "Background darkening for the mixed style (0-1)")
	fs.StringVar(&f.size, "size", "", "Frame grid as WxH; 0x0 uses the terminal size")
	fs.StringVar(&f.filter, "filter", "", "Resize filter: nearest, linear, cubic, lanczos")
	fs.Float64Var(&f.gamma, "gamma", 0, "Gamma boost applied before encoding")
	fs.BoolVar(&f.rowScoped, "row-scoped", false, "Reset color state on every row")
	fs.IntVarP(&f.workers, "workers", "j", 0, "Encoder goroutines (0 = CPU count)")
	fs.StringVar(&f.zstdLevel, "zstd-level", "", "Frame compression level: fastest, default, better, best")
}

func (f *encodingFlags) apply(fs *pflag.FlagSet, enc *config.Encoding) {
	if fs.Changed("style") {
		enc.Style = f.style
	}
	if fs.Changed("charset") {
		enc.Charset = f.charset
	}
	if fs.Changed("monochrome") {
		enc.Colorize = !f.monochrome
	}
	if fs.Changed("threshold") {
		enc.Threshold = f.threshold
	}
	if fs.Changed("dynamic") {
		enc.DynamicCompression = f.dynamic
	}
	if fs.Changed("max-frame-kib") {
		enc.MaxFrameKiB = f.maxFrameKiB
		if !fs.Changed("dynamic") && f.maxFrameKiB > 0 {
			enc.DynamicCompression = true
		}
	}
	if fs.Changed("bg-brightness") {
		enc.BackgroundBrightness = f.backgroundBrightness
	}
	if fs.Changed("size") {
		enc.FrameSize = f.size
	}
	if fs.Changed("filter") {
		enc.Filter = f.filter
	}
	if fs.Changed("gamma") {
		enc.Gamma = f.gamma
	}
	if fs.Changed("row-scoped") {
		enc.RowScoped = f.rowScoped
	}
	if fs.Changed("workers") {
		enc.Workers = f.workers
	}
	if fs.Changed("zstd-level") {
		enc.ZstdLevel = f.zstdLevel
	}
}

// withOverrides returns a validated copy of cfg with fn applied.
func withOverrides(cfg *config.Config, fn func(*config.Config)) (*config.Config, error) {
	clone := *cfg
	clone.Tools.FFmpegFlags = append([]string(nil), cfg.Tools.FFmpegFlags...)
	fn(&clone)
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return &clone, nil
}
