package ollamavision

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Urabewe/OllamaVisionGUI/describer"
)

// CaptionImage captions a single image file. Unlike the batch path no sidecar
// is written; the caption is returned to the caller.
func (v *Vision) CaptionImage(ctx context.Context, path, prompt, system string, p describer.Params, timeout time.Duration) (string, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	if prompt == "" {
		prompt = DefaultPrompt
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return v.DescribeImage(rctx, describer.Request{
		Prompt: prompt,
		System: system,
		Image:  img,
		Params: p,
	})
}

// Enhance rewrites text according to the given system prompt, typically one
// of the enhancement presets.
func (v *Vision) Enhance(ctx context.Context, text, system string, p describer.Params, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return v.EnhanceText(rctx, describer.Request{
		Prompt: text,
		System: system,
		Params: p,
	})
}
