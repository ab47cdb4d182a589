package ollamavision

import (
	"fmt"
	"net/http"

	"github.com/Urabewe/OllamaVisionGUI/describer"
	"github.com/Urabewe/OllamaVisionGUI/internal/ollama"
	"github.com/Urabewe/OllamaVisionGUI/internal/openai"
	"github.com/Urabewe/OllamaVisionGUI/internal/openrouter"
	"github.com/Urabewe/OllamaVisionGUI/internal/textgen"
)

// Backend identifies one of the supported backend kinds.
type Backend string

const (
	BackendOllama     Backend = "ollama"
	BackendOpenAI     Backend = "openai"
	BackendOpenRouter Backend = "openrouter"
	BackendTextGen    Backend = "textgen"
)

const (
	DefaultOllamaServer  = "http://localhost:11434"
	DefaultTextGenServer = "http://localhost:5000"
)

type InitOptions struct {
	Backend Backend
	Model   string

	OllamaServer  string
	TextGenServer string

	OpenAIKey     string
	OpenRouterKey string

	// Endpoint overrides for the hosted backends, used by tests.
	OpenAIBaseURL     string
	OpenRouterBaseURL string

	HttpClient *http.Client // if nil uses http.DefaultClient
}

type Vision struct {
	describer.Describer
}

// Init selects and constructs the backend adapter for the configured kind.
// A missing API key is deliberately not an error here: key problems surface
// as auth failures on individual requests so a batch still runs to
// completion.
func Init(vio InitOptions) (*Vision, error) {
	httpClient := vio.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	v := &Vision{}
	switch vio.Backend {
	case BackendOllama:
		if vio.Model == "" {
			return nil, fmt.Errorf("no model selected")
		}
		srv := vio.OllamaServer
		if srv == "" {
			srv = DefaultOllamaServer
		}
		v.Describer = ollama.Init(vio.Model, srv, httpClient)

	case BackendOpenAI:
		if vio.Model == "" {
			return nil, fmt.Errorf("no model selected")
		}
		v.Describer = openai.Init(vio.OpenAIKey, vio.Model, vio.OpenAIBaseURL, httpClient)

	case BackendOpenRouter:
		if vio.Model == "" {
			return nil, fmt.Errorf("no model selected")
		}
		v.Describer = openrouter.Init(vio.OpenRouterKey, vio.Model, vio.OpenRouterBaseURL, httpClient)

	case BackendTextGen:
		srv := vio.TextGenServer
		if srv == "" {
			srv = DefaultTextGenServer
		}
		v.Describer = textgen.Init(srv, httpClient)

	case "":
		return nil, fmt.Errorf("no backend selected")

	default:
		return nil, fmt.Errorf("unknown backend %q", vio.Backend)
	}

	return v, nil
}
