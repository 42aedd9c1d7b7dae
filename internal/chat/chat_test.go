package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/ilmigreen/internal/domain"
	"github.com/vbonduro/ilmigreen/internal/upstream"
)

func sseServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = w.Write([]byte(c))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
}

func delta(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", content)
}

func drain(ch <-chan StreamEvent) []StreamEvent {
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func askTranscript() []domain.Message {
	return append(NewTranscript(), domain.Message{Role: domain.RoleUser, Content: "Baterai bekas termasuk apa?"})
}

func TestStartStream(t *testing.T) {
	var got request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer chat-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": connected\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n"))
		_, _ = w.Write([]byte(delta("Hal")))
		_, _ = w.Write([]byte(delta("o")))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "chat-key", "google/gemini-2.5-flash", slog.Default())
	ch, err := client.StartStream(context.Background(), askTranscript())
	require.NoError(t, err)

	events := drain(ch)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.NoError(t, ev.Err)
	}
	final := events[1].Transcript
	require.Len(t, final, 3)
	assert.Equal(t, domain.Message{Role: domain.RoleAssistant, Content: "Halo"}, final[2])

	assert.True(t, got.Stream)
	assert.Equal(t, "google/gemini-2.5-flash", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, wireMessage{Role: "system", Content: SystemPrompt}, got.Messages[0])
	assert.Equal(t, wireMessage{Role: "assistant", Content: Greeting}, got.Messages[1])
	assert.Equal(t, "user", got.Messages[3].Role)
}

func TestStartStreamEndsWithoutSentinel(t *testing.T) {
	server := sseServer(t, delta("Masukkan "), delta("ke tempat B3."))
	defer server.Close()

	ch, err := NewClient(server.URL, "", "", slog.Default()).StartStream(context.Background(), askTranscript())
	require.NoError(t, err)

	events := drain(ch)
	require.Len(t, events, 2)
	assert.NoError(t, events[1].Err)
	assert.Equal(t, "Masukkan ke tempat B3.", events[1].Content)
}

func TestStartStreamStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, target: upstream.ErrRateLimited},
		{name: "credits exhausted", status: http.StatusPaymentRequired, target: upstream.ErrCreditsExhausted},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			ch, err := NewClient(server.URL, "", "", slog.Default()).StartStream(context.Background(), askTranscript())
			assert.Nil(t, ch)

			var se *upstream.StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestStartStreamRequiresUserMessage(t *testing.T) {
	client := NewClient("http://localhost:0", "", "", slog.Default())

	_, err := client.StartStream(context.Background(), NewTranscript())
	assert.ErrorIs(t, err, ErrNoUserMessage)

	_, err = client.StartStream(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoUserMessage)
}

func TestStartStreamNetworkError(t *testing.T) {
	client := NewClient("http://localhost:99999", "", "", slog.Default())
	_, err := client.StartStream(context.Background(), askTranscript())
	assert.Error(t, err)
}

func TestStartStreamTruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := delta("Sebagian")
		// Promise more bytes than are written so the client sees an
		// unexpected EOF mid-stream.
		w.Header().Set("Content-Length", fmt.Sprint(len(body)+100))
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	ch, err := NewClient(server.URL, "", "", slog.Default()).StartStream(context.Background(), askTranscript())
	require.NoError(t, err)

	events := drain(ch)
	require.Len(t, events, 2)
	assert.Equal(t, "Sebagian", events[0].Content)
	assert.Error(t, events[1].Err)
}

func TestStartStreamCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(delta("Tunggu")))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewClient(server.URL, "", "", slog.Default()).StartStream(ctx, askTranscript())
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "Tunggu", first.Content)
	cancel()

	for ev := range ch {
		assert.NoError(t, ev.Err)
	}
}
