package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Urabewe/OllamaVisionGUI"
	"github.com/schollz/progressbar/v3"
)

// progressReporter renders batch progress as a terminal bar and logs each
// failure inline with the offending filename.
type progressReporter struct {
	bar    *progressbar.ProgressBar
	logger *slog.Logger
}

func newProgressReporter(logger *slog.Logger) *progressReporter {
	return &progressReporter{logger: logger}
}

func (r *progressReporter) ItemDone(res ollamavision.ItemResult, completed, total int) {
	if r.bar == nil {
		r.bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetDescription("Captioning"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() { fmt.Println() }),
		)
	}

	r.bar.Add(1)
	if res.Failed() {
		r.logger.Error("caption failed", "image", filepath.Base(res.Path), "err", res.Err)
	}
}

func (r *progressReporter) BatchDone(run *ollamavision.BatchRun) {
	if r.bar != nil {
		r.bar.Finish()
	}

	attrs := []any{
		"succeeded", run.Succeeded,
		"failed", run.Failed,
		"took", run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
	}
	if run.Cancelled {
		attrs = append(attrs, "cancelled", true, "unprocessed", run.Unprocessed())
	}
	r.logger.Info("batch complete", attrs...)
}
