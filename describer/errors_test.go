package describer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromStatus(t *testing.T) {
	t.Run("string error body", func(t *testing.T) {
		err := FromStatus("ollama", 500, []byte(`{"error": "model not found"}`))
		if expected, actual := KindBackend, err.Kind; expected != actual {
			t.Errorf("expected kind %s, got %s", expected, actual)
		}
		if expected, actual := "model not found", err.Message; expected != actual {
			t.Errorf("expected message %q, got %q", expected, actual)
		}
		if expected, actual := 500, err.Status; expected != actual {
			t.Errorf("expected status %d, got %d", expected, actual)
		}
	})

	t.Run("object error body", func(t *testing.T) {
		err := FromStatus("openrouter", 400, []byte(`{"error": {"message": "bad model id", "code": 400}}`))
		if expected, actual := "bad model id", err.Message; expected != actual {
			t.Errorf("expected message %q, got %q", expected, actual)
		}
	})

	t.Run("unparseable body", func(t *testing.T) {
		err := FromStatus("ollama", 502, []byte("<html>gateway error</html>"))
		if expected, actual := http.StatusText(502), err.Message; expected != actual {
			t.Errorf("expected message %q, got %q", expected, actual)
		}
	})

	t.Run("auth statuses", func(t *testing.T) {
		for _, status := range []int{401, 403} {
			err := FromStatus("openai", status, nil)
			if expected, actual := KindAuth, err.Kind; expected != actual {
				t.Errorf("status %d: expected kind %s, got %s", status, expected, actual)
			}
		}
	})
}

func TestWrapTransport(t *testing.T) {
	t.Run("deadline", func(t *testing.T) {
		err := WrapTransport("ollama", fmt.Errorf("request: %w", context.DeadlineExceeded))
		if expected, actual := KindTimeout, err.Kind; expected != actual {
			t.Errorf("expected kind %s, got %s", expected, actual)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		err := WrapTransport("ollama", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"))
		if expected, actual := KindNetwork, err.Kind; expected != actual {
			t.Errorf("expected kind %s, got %s", expected, actual)
		}
	})
}

func TestErrKind(t *testing.T) {
	wrapped := fmt.Errorf("captioning: %w", &Error{Kind: KindAuth, Backend: "openai"})
	if expected, actual := KindAuth, ErrKind(wrapped); expected != actual {
		t.Errorf("expected kind %s, got %s", expected, actual)
	}
	if expected, actual := Kind(0), ErrKind(errors.New("plain")); expected != actual {
		t.Errorf("expected kind %d, got %d", expected, actual)
	}
}

func TestErrorString(t *testing.T) {
	withStatus := &Error{Kind: KindBackend, Backend: "ollama", Status: 500, Message: "boom"}
	if expected, actual := "ollama: backend error (HTTP 500): boom", withStatus.Error(); expected != actual {
		t.Errorf("expected %q, got %q", expected, actual)
	}

	noStatus := &Error{Kind: KindNetwork, Backend: "ollama", Message: "connection refused"}
	if expected, actual := "ollama: network error: connection refused", noStatus.Error(); expected != actual {
		t.Errorf("expected %q, got %q", expected, actual)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &Error{Kind: KindNetwork, Backend: "ollama", Message: "failed", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("Error should unwrap to its cause")
	}
}
