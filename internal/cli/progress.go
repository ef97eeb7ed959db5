package cli

import (
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/config"
	"github.com/schollz/progressbar/v3"
)

// progress reports a phase's processed-line count: a log line every
// interval lines and, when enabled, a live spinner on w.
type progress struct {
	phase    string
	interval int
	bar      *progressbar.ProgressBar
	logger   *slog.Logger
	start    time.Time
}

func newProgress(phase string, data config.DataConfig, w io.Writer) *progress {
	p := &progress{
		phase:    phase,
		interval: data.ProgressInterval,
		logger:   slog.Default().With("component", "progress", "phase", phase),
		start:    time.Now(),
	}
	if data.ProgressBar {
		p.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(phase),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("lines"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSpinnerType(14),
		)
	}
	return p
}

func (p *progress) Update(processed int) {
	if p.bar != nil {
		p.bar.Set(processed)
	}
	if p.interval > 0 && processed%p.interval == 0 {
		p.logger.Info("processed", "lines", processed, "elapsed", time.Since(p.start).Round(time.Millisecond))
	}
}

func (p *progress) Finish(processed int) {
	if p.bar != nil {
		p.bar.Finish()
	}
	p.logger.Info("phase complete", "lines", processed, "elapsed", time.Since(p.start).Round(time.Millisecond))
}
