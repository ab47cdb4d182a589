package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Urabewe/OllamaVisionGUI/describer"
)

// pngHeader is enough of a PNG for content type sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

func TestDescribeImage(t *testing.T) {
	var got chatRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if expected, actual := "/api/v1/chat/completions", r.URL.Path; expected != actual {
			t.Errorf("expected path %s, got %s", expected, actual)
		}
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshaling request: %v", err)
		}
		io.WriteString(w, `{"choices": [{"message": {"content": "a cat on a mat "}}]}`)
	}))
	defer srv.Close()

	o := Init("sk-or-test", "qwen/qwen2.5-vl-72b-instruct", srv.URL, srv.Client())
	caption, err := o.DescribeImage(context.Background(), describer.Request{
		Prompt: "Describe this image",
		System: "You are a captioner",
		Image:  pngHeader,
		Params: describer.Params{
			Temperature:   0.8,
			MaxTokens:     500,
			TopP:          0.7,
			TopK:          40,
			RepeatPenalty: 1.1,
			Seed:          42,
			MinP:          0.05,
			TopA:          0.1,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if expected, actual := "a cat on a mat", caption; expected != actual {
		t.Errorf("expected caption %q, got %q", expected, actual)
	}

	if expected, actual := "Bearer sk-or-test", headers.Get("Authorization"); expected != actual {
		t.Errorf("expected Authorization %q, got %q", expected, actual)
	}
	if headers.Get("HTTP-Referer") == "" {
		t.Error("HTTP-Referer header should be set")
	}
	if expected, actual := "OllamaVision", headers.Get("X-Title"); expected != actual {
		t.Errorf("expected X-Title %q, got %q", expected, actual)
	}

	if expected, actual := "qwen/qwen2.5-vl-72b-instruct", got.Model; expected != actual {
		t.Errorf("expected model %s, got %s", expected, actual)
	}
	if expected, actual := 500, got.MaxTokens; expected != actual {
		t.Errorf("expected max_tokens %d, got %d", expected, actual)
	}
	if expected, actual := 40, got.TopK; expected != actual {
		t.Errorf("expected top_k %d, got %d", expected, actual)
	}
	if expected, actual := 1.1, got.RepetitionPenalty; expected != actual {
		t.Errorf("expected repetition_penalty %v, got %v", expected, actual)
	}
	if expected, actual := 0.05, got.MinP; expected != actual {
		t.Errorf("expected min_p %v, got %v", expected, actual)
	}
	if expected, actual := 0.1, got.TopA; expected != actual {
		t.Errorf("expected top_a %v, got %v", expected, actual)
	}
	if got.Seed == nil || *got.Seed != 42 {
		t.Errorf("expected seed 42, got %v", got.Seed)
	}

	// system message then the user message with text and image parts.
	if expected, actual := 2, len(got.Messages); expected != actual {
		t.Fatalf("expected %d messages, got %d", expected, actual)
	}
	if expected, actual := "system", got.Messages[0].Role; expected != actual {
		t.Errorf("expected first role %s, got %s", expected, actual)
	}
	user := got.Messages[1]
	if expected, actual := 2, len(user.Content); expected != actual {
		t.Fatalf("expected %d content items, got %d", expected, actual)
	}
	if user.Content[1].ImageURL == nil || !strings.HasPrefix(user.Content[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("expected a png data URL, got %v", user.Content[1].ImageURL)
	}
}

func TestDescribeImageNoKey(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	o := Init("", "qwen-vl", srv.URL, srv.Client())
	_, err := o.DescribeImage(context.Background(), describer.Request{Image: pngHeader})
	if expected, actual := describer.KindAuth, describer.ErrKind(err); expected != actual {
		t.Errorf("expected kind %s, got %s", expected, actual)
	}
	if expected, actual := 0, hits; expected != actual {
		t.Error("a missing key should fail before reaching the server")
	}
}

func TestDescribeImageRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": {"message": "invalid api key"}}`)
	}))
	defer srv.Close()

	o := Init("sk-or-bad", "qwen-vl", srv.URL, srv.Client())
	_, err := o.DescribeImage(context.Background(), describer.Request{Image: pngHeader})
	if expected, actual := describer.KindAuth, describer.ErrKind(err); expected != actual {
		t.Errorf("expected kind %s, got %s", expected, actual)
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error should carry the backend message, got %v", err)
	}
}

func TestEnhanceText(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		io.WriteString(w, `{"choices": [{"message": {"content": "enhanced"}}]}`)
	}))
	defer srv.Close()

	o := Init("sk-or-test", "qwen-72b", srv.URL, srv.Client())
	out, err := o.EnhanceText(context.Background(), describer.Request{
		Prompt: "a cat",
		Params: describer.Params{Seed: -1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := "enhanced", out; expected != actual {
		t.Errorf("expected %q, got %q", expected, actual)
	}
	if got.Seed != nil {
		t.Error("negative seed should be omitted")
	}
	if expected, actual := 1, len(got.Messages); expected != actual {
		t.Fatalf("expected %d message, got %d", expected, actual)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if expected, actual := "/api/v1/models", r.URL.Path; expected != actual {
			t.Errorf("expected path %s, got %s", expected, actual)
		}
		io.WriteString(w, `{"data": [{"id": "qwen/qwen2.5-vl-72b-instruct"}, {"id": "openai/gpt-4o"}]}`)
	}))
	defer srv.Close()

	o := Init("", "", srv.URL, srv.Client())
	models, err := o.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := 2, len(models); expected != actual {
		t.Fatalf("expected %d models, got %d", expected, actual)
	}
	if expected, actual := "qwen/qwen2.5-vl-72b-instruct", models[0]; expected != actual {
		t.Errorf("expected model %s, got %s", expected, actual)
	}
}

func TestNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices": []}`)
	}))
	defer srv.Close()

	o := Init("sk-or-test", "qwen-vl", srv.URL, srv.Client())
	_, err := o.EnhanceText(context.Background(), describer.Request{Prompt: "x", Params: describer.Params{Seed: -1}})
	if expected, actual := describer.KindBackend, describer.ErrKind(err); expected != actual {
		t.Errorf("expected kind %s, got %s", expected, actual)
	}
}
