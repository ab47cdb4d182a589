package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Urabewe/OllamaVisionGUI/describer"
)

type jsonmap map[string]any

type ollama struct {
	srvAddr string
	model   string

	client *http.Client
}

var _ describer.Describer = &ollama{}

func Init(model, srvAddr string, httpClient *http.Client) *ollama {
	return &ollama{
		srvAddr: strings.TrimRight(srvAddr, "/"),
		model:   model,
		client:  httpClient,
	}
}

func (o *ollama) Name() string { return "ollama" }

func (o *ollama) Model() string { return o.model }

func (o *ollama) IsHealthy() bool {
	resp, err := o.client.Get(o.srvAddr + "/api/version")
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (o *ollama) DescribeImage(ctx context.Context, req describer.Request) (string, error) {
	imb64 := base64.StdEncoding.EncodeToString(req.Image)
	return o.generate(ctx, req, jsonmap{
		"images": []string{imb64},
	})
}

func (o *ollama) EnhanceText(ctx context.Context, req describer.Request) (string, error) {
	return o.generate(ctx, req, nil)
}

func (o *ollama) ListModels(ctx context.Context) ([]string, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.srvAddr+"/api/tags", nil)
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

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// options converts Params into Ollama's options map. Knobs left at their zero
// value are omitted so the model's own defaults apply.
func options(p describer.Params) jsonmap {
	opts := jsonmap{}
	if p.Temperature > 0 {
		opts["temperature"] = p.Temperature
	}
	if p.MaxTokens > 0 {
		opts["num_predict"] = p.MaxTokens
	}
	if p.TopP > 0 {
		opts["top_p"] = p.TopP
	}
	if p.TopK > 0 {
		opts["top_k"] = p.TopK
	}
	if p.RepeatPenalty > 0 {
		opts["repeat_penalty"] = p.RepeatPenalty
	}
	if p.Seed >= 0 {
		opts["seed"] = p.Seed
	}
	if p.FrequencyPenalty != 0 {
		opts["frequency_penalty"] = p.FrequencyPenalty
	}
	if p.PresencePenalty != 0 {
		opts["presence_penalty"] = p.PresencePenalty
	}
	if p.MinP > 0 {
		opts["min_p"] = p.MinP
	}
	return opts
}

func (o *ollama) generate(ctx context.Context, req describer.Request, keys jsonmap) (string, error) {
	data := jsonmap{
		"model":   o.model,
		"prompt":  req.Prompt,
		"stream":  false,
		"options": options(req.Params),
	}
	if req.System != "" {
		data["system"] = req.System
	}
	for k, v := range keys {
		data[k] = v
	}

	buf := bytes.NewBuffer(make([]byte, 0, 2_000_000)) // The buffer will be resized by Encode
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&data); err != nil {
		return "", err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.srvAddr+"/api/generate", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")

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

	respbody := struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}{}
	if err := json.Unmarshal(body, &respbody); err != nil {
		return "", err
	}

	return strings.TrimSpace(respbody.Response), nil
}
