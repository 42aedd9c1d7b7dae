package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vbonduro/ilmigreen/internal/domain"
	"github.com/vbonduro/ilmigreen/internal/stream"
	"github.com/vbonduro/ilmigreen/internal/upstream"
)

// SystemPrompt is sent ahead of the transcript on every exchange.
const SystemPrompt = "Kamu adalah IlmiGreen Assistant, asisten ramah yang membantu pengguna memahami pengelolaan sampah dan lingkungan. Jawab dalam Bahasa Indonesia yang singkat dan edukatif."

// Greeting opens every new conversation.
const Greeting = "Halo! 👋 Saya IlmiGreen Assistant. Ada yang bisa saya bantu tentang pengelolaan sampah dan lingkungan?"

// ErrNoUserMessage is returned when the transcript does not end with the
// user message the assistant should answer.
var ErrNoUserMessage = errors.New("transcript must end with a user message")

// Streamer starts one streamed chat exchange.
type Streamer interface {
	// StartStream posts transcript to the chat service and sends a snapshot
	// on the returned channel after every fragment of the reply. The channel
	// is closed when the stream ends or ctx is cancelled. A failure after the
	// stream opened arrives as a final StreamEvent with Err set; snapshots
	// already sent stay valid.
	StartStream(ctx context.Context, transcript []domain.Message) (<-chan StreamEvent, error)
}

// StreamEvent is either a transcript snapshot or a terminal error.
type StreamEvent struct {
	Transcript []domain.Message
	Content    string
	Err        error
}

// NewTranscript returns the transcript a fresh conversation starts with.
func NewTranscript() []domain.Message {
	return []domain.Message{{Role: domain.RoleAssistant, Content: Greeting}}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model    string        `json:"model,omitempty"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type Client struct {
	url    string
	apiKey string
	model  string
	client *http.Client
	logger *slog.Logger
}

func NewClient(url, apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{},
		logger: logger,
	}
}

func buildMessages(transcript []domain.Message) []wireMessage {
	msgs := make([]wireMessage, 0, len(transcript)+1)
	msgs = append(msgs, wireMessage{Role: "system", Content: SystemPrompt})
	for _, m := range transcript {
		msgs = append(msgs, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return msgs
}

func (c *Client) StartStream(ctx context.Context, transcript []domain.Message) (<-chan StreamEvent, error) {
	if n := len(transcript); n == 0 || transcript[n-1].Role != domain.RoleUser {
		return nil, ErrNoUserMessage
	}

	payload, err := json.Marshal(request{
		Model:    c.model,
		Messages: buildMessages(transcript),
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := upstream.NewRequest(ctx, c.url, c.apiKey, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat service: %w", err)
	}
	if err := upstream.CheckResponse(resp); err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent, 16)

	go func() {
		defer close(ch)
		defer upstream.CloseBody(resp)

		reader := stream.NewReader(resp.Body, transcript, c.logger)
		err := reader.Run(ctx, func(s stream.Snapshot) {
			select {
			case ch <- StreamEvent{Transcript: s.Transcript, Content: s.Content}:
			case <-ctx.Done():
			}
		})
		if err != nil && ctx.Err() == nil {
			ch <- StreamEvent{Err: fmt.Errorf("read chat stream: %w", err)}
		}
	}()

	return ch, nil
}
