package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/Urabewe/OllamaVisionGUI/describer"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openai struct {
	oac    *oagc.Client
	model  string
	apiKey string
}

var _ describer.Describer = &openai{}

// Init builds an OpenAI-backed describer. baseURL overrides the API endpoint
// and is primarily for tests; pass "" for the real service. A missing apiKey
// is not an error here, each request will fail with an auth error instead so
// that batch runs over a misconfigured backend still complete.
func Init(apiKey, model, baseURL string, httpClient *http.Client) *openai {
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &openai{
		oac:    oagc.NewClient(opts...),
		model:  model,
		apiKey: apiKey,
	}
}

func (o *openai) Name() string { return "openai" }

func (o *openai) Model() string { return o.model }

func (o *openai) IsHealthy() bool {
	// The hosted API has no cheap health probe; failures surface per request.
	return true
}

func (o *openai) DescribeImage(ctx context.Context, req describer.Request) (string, error) {
	if err := o.checkKey(); err != nil {
		return "", err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s",
		http.DetectContentType(req.Image), base64.StdEncoding.EncodeToString(req.Image))

	var msgs []oagc.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, oagc.SystemMessage(req.System))
	}
	msgs = append(msgs, oagc.UserMessageParts(
		oagc.TextPart(req.Prompt),
		oagc.ImagePart(dataURL),
	))

	return o.complete(ctx, msgs, req.Params)
}

func (o *openai) EnhanceText(ctx context.Context, req describer.Request) (string, error) {
	if err := o.checkKey(); err != nil {
		return "", err
	}

	var msgs []oagc.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, oagc.SystemMessage(req.System))
	}
	msgs = append(msgs, oagc.UserMessage(req.Prompt))

	return o.complete(ctx, msgs, req.Params)
}

func (o *openai) ListModels(ctx context.Context) ([]string, error) {
	if err := o.checkKey(); err != nil {
		return nil, err
	}

	page, err := o.oac.Models.List(ctx)
	if err != nil {
		return nil, o.classify(err)
	}

	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func (o *openai) complete(ctx context.Context, msgs []oagc.ChatCompletionMessageParamUnion, p describer.Params) (string, error) {
	cnp := oagc.ChatCompletionNewParams{
		Model:    oagc.F(oagc.ChatModel(o.model)),
		Messages: oagc.F(msgs),
	}
	if p.MaxTokens > 0 {
		cnp.MaxTokens = oagc.Int(int64(p.MaxTokens))
	}
	if p.Temperature > 0 {
		cnp.Temperature = oagc.Float(p.Temperature)
	}
	if p.TopP > 0 {
		cnp.TopP = oagc.Float(p.TopP)
	}
	if p.Seed >= 0 {
		cnp.Seed = oagc.Int(int64(p.Seed))
	}
	if p.FrequencyPenalty != 0 {
		cnp.FrequencyPenalty = oagc.Float(p.FrequencyPenalty)
	}
	if p.PresencePenalty != 0 {
		cnp.PresencePenalty = oagc.Float(p.PresencePenalty)
	}

	resp, err := o.oac.Chat.Completions.New(ctx, cnp)
	if err != nil {
		return "", o.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &describer.Error{Kind: describer.KindBackend, Backend: o.Name(), Message: "no choices in response"}
	}

	return resp.Choices[0].Message.Content, nil
}

func (o *openai) checkKey() error {
	if o.apiKey == "" {
		return &describer.Error{Kind: describer.KindAuth, Backend: o.Name(), Message: "no API key configured"}
	}
	return nil
}

// classify converts SDK errors into the adapter error taxonomy.
func (o *openai) classify(err error) error {
	var aerr *oagc.Error
	if errors.As(err, &aerr) {
		return &describer.Error{
			Kind:    describer.StatusKind(aerr.StatusCode),
			Backend: o.Name(),
			Status:  aerr.StatusCode,
			Message: aerr.Error(),
			Err:     err,
		}
	}
	return describer.WrapTransport(o.Name(), err)
}
