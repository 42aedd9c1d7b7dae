// Package upstream holds the HTTP plumbing shared by clients of the
// OpenAI-compatible AI gateway.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

var (
	ErrRateLimited      = errors.New("rate limited by AI service")
	ErrCreditsExhausted = errors.New("AI service credits exhausted")
	ErrNoBody           = errors.New("AI service response has no body")
)

// maxErrorBody caps how much of an error response is kept for the message.
const maxErrorBody = 4096

// StatusError is returned for any non-2xx response. It unwraps to
// ErrRateLimited for 429 and ErrCreditsExhausted for 402.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("AI service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("AI service returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrCreditsExhausted
	default:
		return nil
	}
}

// NewRequest creates an authenticated JSON POST request.
func NewRequest(ctx context.Context, url, apiKey string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

// CheckResponse returns nil for a 2xx response with a body. Otherwise it
// closes the body and returns a *StatusError or ErrNoBody.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		CloseBody(resp)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(errBody))}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		CloseBody(resp)
		return ErrNoBody
	}
	return nil
}

func CloseBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		slog.Error("failed to close AI service response body", "error", err)
	}
}
