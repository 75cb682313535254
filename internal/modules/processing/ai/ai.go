package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"
)

var (
	// ErrMissingCredential means the selected provider has no API key.
	ErrMissingCredential = errors.New("AI provider api key is empty")
	// ErrNoProvider means no enabled provider is configured.
	ErrNoProvider = errors.New("no AI provider configured")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("empty response from AI")
)

// Part is one ordered element of a model request. Exactly one of Text or Data is set.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

func TextPart(text string) Part { return Part{Text: text} }

func BlobPart(data []byte, mimeType string) Part {
	return Part{Data: data, MIMEType: mimeType}
}

// IsBlob reports whether the part carries binary data.
func (p Part) IsBlob() bool { return len(p.Data) > 0 }

// Request is a single-turn prompt.
type Request struct {
	System    string
	Parts     []Part
	MaxTokens int
}

// Model generates text from an ordered multimodal payload in one call.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx answer from a provider reached over raw HTTP.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient reports whether a failed call may succeed when repeated:
// network faults, timeouts, 408, 429 and 5xx answers.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrNoProvider) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	var anthropicErr *anthropicclient.Error
	if errors.As(err, &anthropicErr) {
		return retryableStatus(anthropicErr.StatusCode)
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
