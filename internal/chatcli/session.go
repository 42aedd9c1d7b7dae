// Package chatcli is a terminal client for the IlmiGreen chat API.
package chatcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/vbonduro/ilmigreen/internal/chat"
	"github.com/vbonduro/ilmigreen/internal/domain"
	"github.com/vbonduro/ilmigreen/internal/stream"
	"github.com/vbonduro/ilmigreen/internal/upstream"
)

// ExchangeError is a failure the server reported after the reply started
// streaming.
type ExchangeError struct {
	Message string
}

func (e *ExchangeError) Error() string {
	return "chat exchange failed: " + e.Message
}

// Session holds one conversation with an IlmiGreen server. It is not safe
// for concurrent use.
type Session struct {
	baseURL        string
	client         *http.Client
	logger         *slog.Logger
	conversationID string
	transcript     []domain.Message
}

func NewSession(baseURL string, client *http.Client, logger *slog.Logger) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		logger:     logger,
		transcript: chat.NewTranscript(),
	}
}

func (s *Session) ConversationID() string {
	return s.conversationID
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []domain.Message {
	return slices.Clone(s.transcript)
}

type conversation struct {
	ID       string           `json:"id"`
	Messages []domain.Message `json:"messages"`
}

// Resume replaces the session transcript with a stored conversation.
func (s *Session) Resume(ctx context.Context, conversationID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/api/conversations/"+url.PathEscape(conversationID), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if err := upstream.CheckResponse(resp); err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	defer upstream.CloseBody(resp)

	var c conversation
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return fmt.Errorf("failed to decode conversation: %w", err)
	}
	s.conversationID = c.ID
	s.transcript = c.Messages
	return nil
}

type chatRequest struct {
	ConversationID string           `json:"conversation_id,omitempty"`
	Messages       []domain.Message `json:"messages"`
}

// Ask sends question and streams the reply, calling onUpdate with the full
// reply text after every fragment. Whatever arrived before a failure stays in
// the transcript. A request the server rejects leaves the transcript as it was.
func (s *Session) Ask(ctx context.Context, question string, onUpdate func(content string)) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question is empty")
	}
	transcript := append(slices.Clone(s.transcript), domain.Message{Role: domain.RoleUser, Content: question})

	payload, err := json.Marshal(chatRequest{ConversationID: s.conversationID, Messages: transcript})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := upstream.NewRequest(ctx, s.baseURL+"/api/chat", "", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send question: %w", err)
	}
	if err := upstream.CheckResponse(resp); err != nil {
		return "", err
	}
	defer upstream.CloseBody(resp)

	if id := resp.Header.Get("X-Conversation-ID"); id != "" {
		s.conversationID = id
	}

	reader := stream.NewReader(resp.Body, transcript, s.logger, stream.WithPayloadCheck(checkErrorFrame))
	runErr := reader.Run(ctx, func(snap stream.Snapshot) {
		if onUpdate != nil {
			onUpdate(snap.Content)
		}
	})
	s.transcript = reader.Transcript()
	if runErr != nil {
		return reader.Content(), runErr
	}
	return reader.Content(), nil
}

// checkErrorFrame recognises the {"error": ...} frame the server sends in
// place of the sentinel when the reply fails mid-stream.
func checkErrorFrame(payload string) error {
	if !strings.HasPrefix(payload, "{") {
		return nil
	}
	var frame struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(payload), &frame); err != nil || frame.Error == "" {
		return nil
	}
	return &ExchangeError{Message: frame.Error}
}
