package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Urabewe/OllamaVisionGUI/describer"
)

const (
	defaultBaseURL = "https://openrouter.ai"

	// OpenRouter asks callers to identify themselves with these headers so
	// usage shows up on the app leaderboard.
	refererHeader = "https://github.com/Urabewe/OllamaVisionGUI"
	titleHeader   = "OllamaVision"
)

type message struct {
	Role    string        `json:"role"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model             string    `json:"model"`
	Messages          []message `json:"messages"`
	MaxTokens         int       `json:"max_tokens,omitempty"`
	Temperature       float64   `json:"temperature,omitempty"`
	TopP              float64   `json:"top_p,omitempty"`
	TopK              int       `json:"top_k,omitempty"`
	RepetitionPenalty float64   `json:"repetition_penalty,omitempty"`
	Seed              *int      `json:"seed,omitempty"`
	FrequencyPenalty  float64   `json:"frequency_penalty,omitempty"`
	PresencePenalty   float64   `json:"presence_penalty,omitempty"`
	MinP              float64   `json:"min_p,omitempty"`
	TopA              float64   `json:"top_a,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openrouter struct {
	baseURL string
	apiKey  string
	model   string

	client *http.Client
}

var _ describer.Describer = &openrouter{}

// Init builds an OpenRouter-backed describer. baseURL overrides the API host
// for tests; pass "" for the real service.
func Init(apiKey, model, baseURL string, httpClient *http.Client) *openrouter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &openrouter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  httpClient,
	}
}

func (o *openrouter) Name() string { return "openrouter" }

func (o *openrouter) Model() string { return o.model }

func (o *openrouter) IsHealthy() bool {
	// The models index does not require a key.
	resp, err := o.client.Get(o.baseURL + "/api/v1/models")
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (o *openrouter) DescribeImage(ctx context.Context, req describer.Request) (string, error) {
	if err := o.checkKey(); err != nil {
		return "", err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s",
		http.DetectContentType(req.Image), base64.StdEncoding.EncodeToString(req.Image))

	user := message{
		Role: "user",
		Content: []contentItem{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		},
	}
	return o.send(ctx, o.buildRequest(req, user))
}

func (o *openrouter) EnhanceText(ctx context.Context, req describer.Request) (string, error) {
	if err := o.checkKey(); err != nil {
		return "", err
	}

	user := message{
		Role:    "user",
		Content: []contentItem{{Type: "text", Text: req.Prompt}},
	}
	return o.send(ctx, o.buildRequest(req, user))
}

func (o *openrouter) ListModels(ctx context.Context) ([]string, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/v1/models", nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(hreq)
	if err != nil {
		return nil, describer.WrapTransport(o.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, describer.WrapTransport(o.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, describer.FromStatus(o.Name(), resp.StatusCode, body)
	}

	var index struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(index.Data))
	for _, m := range index.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func (o *openrouter) checkKey() error {
	if o.apiKey == "" {
		return &describer.Error{Kind: describer.KindAuth, Backend: o.Name(), Message: "no API key configured"}
	}
	return nil
}

func (o *openrouter) buildRequest(req describer.Request, user message) *chatRequest {
	cr := &chatRequest{
		Model:             o.model,
		MaxTokens:         req.Params.MaxTokens,
		Temperature:       req.Params.Temperature,
		TopP:              req.Params.TopP,
		TopK:              req.Params.TopK,
		RepetitionPenalty: req.Params.RepeatPenalty,
		FrequencyPenalty:  req.Params.FrequencyPenalty,
		PresencePenalty:   req.Params.PresencePenalty,
		MinP:              req.Params.MinP,
		TopA:              req.Params.TopA,
	}
	if req.Params.Seed >= 0 {
		seed := req.Params.Seed
		cr.Seed = &seed
	}
	if req.System != "" {
		cr.Messages = append(cr.Messages, message{
			Role:    "system",
			Content: []contentItem{{Type: "text", Text: req.System}},
		})
	}
	cr.Messages = append(cr.Messages, user)
	return cr
}

func (o *openrouter) send(ctx context.Context, cr *chatRequest) (string, error) {
	payload, err := json.Marshal(cr)
	if err != nil {
		return "", err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Authorization", "Bearer "+o.apiKey)
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("HTTP-Referer", refererHeader)
	hreq.Header.Set("X-Title", titleHeader)

	resp, err := o.client.Do(hreq)
	if err != nil {
		return "", describer.WrapTransport(o.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", describer.WrapTransport(o.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", describer.FromStatus(o.Name(), resp.StatusCode, body)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", err
	}
	if len(chat.Choices) == 0 {
		return "", &describer.Error{Kind: describer.KindBackend, Backend: o.Name(), Message: "no choices in response"}
	}

	return strings.TrimSpace(chat.Choices[0].Message.Content), nil
}
