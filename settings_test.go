package ollamavision

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendOllama, s.Backend)
	assert.Equal(t, DefaultOllamaServer, s.Ollama.URL)
	assert.Equal(t, DefaultTextGenServer, s.TextGen.URL)
	assert.Equal(t, DefaultWorkers, s.Workers)
	assert.Equal(t, DefaultTimeout, s.Timeout())
	assert.Equal(t, 0.8, s.Params.Temperature)
	assert.Equal(t, 500, s.Params.MaxTokens)
	assert.Equal(t, -1, s.Params.Seed)
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "ollamavision.yaml")

	s := DefaultSettings()
	s.Backend = BackendOpenRouter
	s.OpenRouter = BackendSettings{APIKey: "sk-or-test", Model: "qwen-vl"}
	s.CaptionStyle = "danbooru"
	s.TriggerWord = "sks"
	s.TriggerSuffix = true
	s.Workers = 4
	s.TimeoutSeconds = 60
	s.RequestsPerMinute = 20
	require.NoError(t, s.Save(path))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadSettingsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0644))

	_, err := LoadSettings(path)
	assert.ErrorContains(t, err, "parse settings")
}

func TestSettingsModel(t *testing.T) {
	s := DefaultSettings()
	s.Ollama.Model = "llava:13b"
	s.OpenAI.Model = "gpt-4o"

	assert.Equal(t, "llava:13b", s.Model())

	s.Backend = BackendOpenAI
	assert.Equal(t, "gpt-4o", s.Model())

	s.Backend = Backend("bogus")
	assert.Equal(t, "", s.Model())
}

func TestSettingsOptions(t *testing.T) {
	s := DefaultSettings()
	s.Backend = BackendOpenAI
	s.OpenAI = BackendSettings{APIKey: "sk-test", Model: "gpt-4o"}

	client := &http.Client{}
	opts := s.Options(client)
	assert.Equal(t, BackendOpenAI, opts.Backend)
	assert.Equal(t, "gpt-4o", opts.Model)
	assert.Equal(t, "sk-test", opts.OpenAIKey)
	assert.Same(t, client, opts.HttpClient)
}

func TestSettingsTimeout(t *testing.T) {
	s := DefaultSettings()
	s.TimeoutSeconds = 45
	assert.Equal(t, 45*time.Second, s.Timeout())

	s.TimeoutSeconds = 0
	assert.Equal(t, DefaultTimeout, s.Timeout())
}
