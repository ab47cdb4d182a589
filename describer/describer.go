package describer

import "context"

// Params are the generation knobs forwarded to the backend. Zero values are
// left out of the request so the backend's own defaults apply; Seed is the
// exception, where any negative value means "unseeded".
type Params struct {
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	TopP             float64 `yaml:"top_p"`
	TopK             int     `yaml:"top_k"`
	RepeatPenalty    float64 `yaml:"repeat_penalty"`
	Seed             int     `yaml:"seed"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
	PresencePenalty  float64 `yaml:"presence_penalty"`
	MinP             float64 `yaml:"min_p"`
	TopA             float64 `yaml:"top_a"`
}

// Request is one unit of work for a Describer. Image holds the full contents
// of the image file including the header, or nil for text-only requests.
type Request struct {
	Prompt string
	System string
	Image  []byte
	Params Params
}

// Describer is the uniform interface over the supported LLM backends.
type Describer interface {
	// Name returns the name of the backend kind, e.g. "ollama" or "openrouter".
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// DescribeImage returns a caption for the image in req. The provided ctx
	// is used as a parent context for the request to the LLM server and is
	// the caller's handle for enforcing a timeout.
	DescribeImage(ctx context.Context, req Request) (string, error)

	// EnhanceText rewrites the text prompt in req according to req.System.
	EnhanceText(ctx context.Context, req Request) (string, error)

	// ListModels returns the model identifiers the backend has available.
	ListModels(ctx context.Context) ([]string, error)

	// IsHealthy returns whether the LLM server is reachable.
	IsHealthy() bool
}
