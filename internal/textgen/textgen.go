package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Urabewe/OllamaVisionGUI/describer"
)

// textgen talks to a local text-generation-webui instance through its
// OpenAI-compatible completions endpoint. It is text-only: the text
// enhancement feature uses it, image analysis does not.
type textgen struct {
	srvAddr string
	model   string

	client *http.Client
}

type completionRequest struct {
	Prompt            string  `json:"prompt"`
	MaxTokens         int     `json:"max_tokens,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	TopP              float64 `json:"top_p,omitempty"`
	TopK              int     `json:"top_k,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
	Seed              *int    `json:"seed,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

var _ describer.Describer = &textgen{}

func Init(srvAddr string, httpClient *http.Client) *textgen {
	return &textgen{
		srvAddr: strings.TrimRight(srvAddr, "/"),
		client:  httpClient,
	}
}

func (t *textgen) Name() string { return "textgen" }

func (t *textgen) Model() string {
	if t.model == "" {
		return "loaded model"
	}
	return t.model
}

func (t *textgen) IsHealthy() bool {
	resp, err := t.client.Get(t.srvAddr + "/v1/models")
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (t *textgen) DescribeImage(ctx context.Context, req describer.Request) (string, error) {
	return "", &describer.Error{Kind: describer.KindBackend, Backend: t.Name(), Message: "image analysis is not supported by the textgen backend"}
}

func (t *textgen) EnhanceText(ctx context.Context, req describer.Request) (string, error) {
	// The completions endpoint has no system role, fold the system prompt
	// into the prompt text.
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}

	cr := completionRequest{
		Prompt:            prompt,
		MaxTokens:         req.Params.MaxTokens,
		Temperature:       req.Params.Temperature,
		TopP:              req.Params.TopP,
		TopK:              req.Params.TopK,
		RepetitionPenalty: req.Params.RepeatPenalty,
	}
	if req.Params.Seed >= 0 {
		seed := req.Params.Seed
		cr.Seed = &seed
	}

	payload, err := json.Marshal(&cr)
	if err != nil {
		return "", err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.srvAddr+"/v1/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(hreq)
	if err != nil {
		return "", describer.WrapTransport(t.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", describer.WrapTransport(t.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", describer.FromStatus(t.Name(), resp.StatusCode, body)
	}

	var completion completionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", &describer.Error{Kind: describer.KindBackend, Backend: t.Name(), Message: "no choices in response"}
	}

	return strings.TrimSpace(completion.Choices[0].Text), nil
}

func (t *textgen) ListModels(ctx context.Context) ([]string, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.srvAddr+"/v1/internal/model/list", nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, describer.WrapTransport(t.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, describer.WrapTransport(t.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, describer.FromStatus(t.Name(), resp.StatusCode, body)
	}

	var list struct {
		ModelNames []string `json:"model_names"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}

	return list.ModelNames, nil
}
