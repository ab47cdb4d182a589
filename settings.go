package ollamavision

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Urabewe/OllamaVisionGUI/describer"
	"gopkg.in/yaml.v3"
)

// BackendSettings hold the per-backend connection details. Fields that do not
// apply to a backend kind are simply left empty.
type BackendSettings struct {
	URL    string `yaml:"url,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

// Settings is the persisted application configuration. It is loaded once at
// startup and passed explicitly; nothing reads it through globals.
type Settings struct {
	Backend Backend `yaml:"backend"`

	Ollama     BackendSettings `yaml:"ollama"`
	OpenAI     BackendSettings `yaml:"openai"`
	OpenRouter BackendSettings `yaml:"openrouter"`
	TextGen    BackendSettings `yaml:"textgen"`

	CaptionStyle  string `yaml:"caption_style"`
	TriggerWord   string `yaml:"trigger_word"`
	TriggerSuffix bool   `yaml:"trigger_suffix"`

	Workers           int `yaml:"workers"`
	TimeoutSeconds    int `yaml:"timeout_seconds"`
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`

	Params describer.Params `yaml:"params"`
}

// DefaultSettings mirrors the defaults of the desktop app.
func DefaultSettings() *Settings {
	return &Settings{
		Backend:        BackendOllama,
		Ollama:         BackendSettings{URL: DefaultOllamaServer},
		TextGen:        BackendSettings{URL: DefaultTextGenServer},
		TriggerWord:    "",
		Workers:        DefaultWorkers,
		TimeoutSeconds: int(DefaultTimeout / time.Second),
		Params: describer.Params{
			Temperature:   0.8,
			MaxTokens:     500,
			TopP:          0.7,
			TopK:          40,
			RepeatPenalty: 1.1,
			Seed:          -1,
		},
	}
}

// LoadSettings reads settings from path. A missing file is not an error, the
// defaults are returned instead.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Save writes the settings to path, creating parent directories as needed.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("write settings: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Model returns the model configured for the active backend.
func (s *Settings) Model() string {
	switch s.Backend {
	case BackendOllama:
		return s.Ollama.Model
	case BackendOpenAI:
		return s.OpenAI.Model
	case BackendOpenRouter:
		return s.OpenRouter.Model
	case BackendTextGen:
		return s.TextGen.Model
	}
	return ""
}

// Options maps the settings onto InitOptions for the active backend.
func (s *Settings) Options(httpClient *http.Client) InitOptions {
	return InitOptions{
		Backend:       s.Backend,
		Model:         s.Model(),
		OllamaServer:  s.Ollama.URL,
		TextGenServer: s.TextGen.URL,
		OpenAIKey:     s.OpenAI.APIKey,
		OpenRouterKey: s.OpenRouter.APIKey,
		HttpClient:    httpClient,
	}
}

// Timeout returns the configured per-request budget.
func (s *Settings) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}
