package ollamavision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Urabewe/OllamaVisionGUI/describer"
	"github.com/Urabewe/OllamaVisionGUI/internal/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWorkers bounds concurrent requests so backend rate limits are
	// respected.
	DefaultWorkers = 2

	// DefaultTimeout is the per-request budget.
	DefaultTimeout = 120 * time.Second
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// BatchOptions configure one folder-wide captioning run.
type BatchOptions struct {
	Folder      string
	Prompt      string // per-image prompt, defaults to DefaultPrompt
	System      string // optional system prompt, usually a caption style preset
	TriggerWord string // token added to every caption, "" disables

	// TriggerSuffix appends the trigger word instead of prepending it.
	TriggerSuffix bool

	Params  describer.Params
	Workers int           // concurrent requests, defaults to DefaultWorkers
	Timeout time.Duration // per-request budget, defaults to DefaultTimeout

	// RequestsPerMinute caps the request rate across workers. 0 disables
	// pacing.
	RequestsPerMinute int
}

// ItemResult is the outcome for a single image. Err is nil on success, in
// which case Caption holds the sidecar contents as written.
type ItemResult struct {
	Path    string
	Caption string
	Err     error
}

func (r ItemResult) Failed() bool { return r.Err != nil }

// BatchRun is the aggregate outcome of one RunBatch invocation. Results holds
// an entry for every processed file, ordered by path; cancelled runs carry
// results only for the files processed before cancellation took effect.
type BatchRun struct {
	Folder     string
	Total      int
	Succeeded  int
	Failed     int
	Cancelled  bool
	Results    []ItemResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Unprocessed returns the number of files skipped due to cancellation.
func (br *BatchRun) Unprocessed() int { return br.Total - br.Succeeded - br.Failed }

// Reporter receives progress notifications from RunBatch. Calls are
// serialized; implementations do not need their own locking.
type Reporter interface {
	// ItemDone is called exactly once per processed file, success or failure.
	ItemDone(res ItemResult, completed, total int)

	// BatchDone is called exactly once, after the final ItemDone.
	BatchDone(run *BatchRun)
}

type nopReporter struct{}

func (nopReporter) ItemDone(ItemResult, int, int) {}
func (nopReporter) BatchDone(*BatchRun)           {}

// DiscardReporter ignores all notifications.
var DiscardReporter Reporter = nopReporter{}

// RunBatch captions every image file in opts.Folder, writing a sidecar .txt
// next to each successfully captioned image. Individual failures are recorded
// and never abort the run. Cancelling ctx stops the run between items;
// in-flight requests are allowed to finish or time out first.
//
// RunBatch returns an error only when the folder itself cannot be read.
func (v *Vision) RunBatch(ctx context.Context, opts BatchOptions, rep Reporter) (*BatchRun, error) {
	if rep == nil {
		rep = DiscardReporter
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	files, err := findImageFiles(opts.Folder)
	if err != nil {
		return nil, err
	}

	run := &BatchRun{
		Folder:    opts.Folder,
		Total:     len(files),
		StartedAt: time.Now(),
	}
	if len(files) == 0 {
		run.FinishedAt = time.Now()
		rep.BatchDone(run)
		return run, nil
	}

	var rl *ratelimit.Limiter
	if opts.RequestsPerMinute > 0 {
		rl = ratelimit.New(opts.RequestsPerMinute, time.Minute)
	}

	var (
		mu        sync.Mutex
		completed int
	)
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for _, path := range files {
		// The cooperative cancellation point. g.Go blocks while the pool is
		// full, so this check runs as each worker slot frees up.
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if rl != nil {
				if err := rl.Acquire(ctx); err != nil {
					return nil
				}
			}

			res := v.captionOne(ctx, path, opts, timeout)

			mu.Lock()
			defer mu.Unlock()
			if res.Failed() {
				run.Failed++
			} else {
				run.Succeeded++
			}
			run.Results = append(run.Results, res)
			completed++
			rep.ItemDone(res, completed, run.Total)
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		run.Cancelled = true
	}
	sort.Slice(run.Results, func(i, j int) bool { return run.Results[i].Path < run.Results[j].Path })
	run.FinishedAt = time.Now()
	rep.BatchDone(run)

	return run, nil
}

// captionOne is the single-item runner: it never returns an error, every
// failure mode ends up inside the ItemResult.
func (v *Vision) captionOne(ctx context.Context, path string, opts BatchOptions, timeout time.Duration) ItemResult {
	res := ItemResult{Path: path}

	img, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("reading image: %w", err)
		return res
	}

	prompt := opts.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	caption, err := v.DescribeImage(rctx, describer.Request{
		Prompt: prompt,
		System: opts.System,
		Image:  img,
		Params: opts.Params,
	})
	if err != nil {
		res.Err = err
		return res
	}

	caption = decorate(caption, opts.TriggerWord, opts.TriggerSuffix)
	if err := writeSidecar(sidecarPath(path), caption); err != nil {
		res.Err = fmt.Errorf("writing sidecar: %w", err)
		return res
	}

	res.Caption = caption
	return res
}

func findImageFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading folder: %w", err)
	}

	// ReadDir returns entries sorted by filename, which gives the run its
	// deterministic order.
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(folder, entry.Name()))
		}
	}
	return files, nil
}

func sidecarPath(imgPath string) string {
	return strings.TrimSuffix(imgPath, filepath.Ext(imgPath)) + ".txt"
}

func decorate(caption, trigger string, suffix bool) string {
	if trigger == "" {
		return caption
	}
	if suffix {
		return caption + ", " + trigger
	}
	return trigger + ", " + caption
}

// writeSidecar writes the caption through a temp file and rename so a crashed
// or cancelled run never leaves a partially-written sidecar behind.
func writeSidecar(path, caption string) error {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.WriteString(caption); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
