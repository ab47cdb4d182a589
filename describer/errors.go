package describer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind partitions adapter failures into the categories callers act on.
type Kind int

const (
	// KindNetwork covers unreachable hosts, DNS failures and refused
	// connections.
	KindNetwork Kind = iota + 1

	// KindAuth covers a missing API key and keys the backend rejects.
	KindAuth

	// KindBackend covers any non-2xx response, carrying the backend's own
	// error message when one was present in the payload.
	KindBackend

	// KindTimeout means no response arrived within the request budget.
	// Adapters never retry on timeout; retry policy belongs to the caller.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindBackend:
		return "backend"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// Error is the failure type surfaced by every Describer implementation.
type Error struct {
	Kind    Kind
	Backend string // backend kind, e.g. "ollama"
	Status  int    // HTTP status when the backend responded, else 0
	Message string
	Err     error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s error (HTTP %d): %s", e.Backend, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Backend, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrKind reports the Kind carried by err, or 0 if err is not an adapter
// error.
func ErrKind(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// WrapTransport classifies an error returned by an HTTP round trip, before
// any response was received.
func WrapTransport(backend string, err error) *Error {
	kind := KindNetwork
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Backend: backend, Message: err.Error(), Err: err}
}

// StatusKind maps an HTTP status to an error Kind.
func StatusKind(status int) Kind {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return KindAuth
	}
	return KindBackend
}

// FromStatus converts a non-2xx response into an Error. The backend's own
// error message is used when the body carries one in either of the common
// shapes {"error": "..."} or {"error": {"message": "..."}}, otherwise the
// raw status is reported.
func FromStatus(backend string, status int, body []byte) *Error {
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: StatusKind(status), Backend: backend, Status: status, Message: msg}
}

func errorMessage(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Error, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &obj); err == nil {
		return obj.Message
	}
	return ""
}
