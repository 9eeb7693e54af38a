package compile

import (
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"bapple/internal/logging"
	"bapple/internal/term"
)

type progress interface {
	Advance()
	Finish()
}

// newProgress draws a bar on an interactive w and otherwise logs sampled
// percentages.
func newProgress(w io.Writer, total int, stage string, logger *slog.Logger) progress {
	if w != nil && term.IsTerminal(w) {
		return &barProgress{bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(stage),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)}
	}
	return &logProgress{
		logger:  logger,
		sampler: logging.NewProgressSampler(10),
		stage:   stage,
		total:   total,
	}
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Advance() { _ = p.bar.Add(1) }

func (p *barProgress) Finish() { _ = p.bar.Finish() }

type logProgress struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	stage   string
	total   int
	done    int
}

func (p *logProgress) Advance() {
	p.done++
	percent := float64(p.done) * 100 / float64(max(p.total, 1))
	if !p.sampler.ShouldLog(percent, p.stage) {
		return
	}
	p.logger.Info("compile progress",
		logging.String(logging.FieldProgressStage, p.stage),
		logging.Float64(logging.FieldProgressPercent, percent),
		logging.String(logging.FieldProgressMessage, progressMessage(p.done, p.total)),
	)
}

func (p *logProgress) Finish() {}

func progressMessage(done, total int) string {
	return humanize.Comma(int64(done)) + "/" + humanize.Comma(int64(total)) + " frames"
}
