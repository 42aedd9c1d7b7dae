package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vbonduro/ilmigreen/internal/chat"
	"github.com/vbonduro/ilmigreen/internal/domain"
)

var ErrConversationNotFound = errors.New("conversation not found")

// conversationRepository is the subset of store.ConversationStore that ChatService requires.
type conversationRepository interface {
	Create(ctx context.Context, id string) (*domain.Conversation, error)
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	AppendMessages(ctx context.Context, conversationID string, msgs []domain.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*domain.StoredMessage, error)
}

type ChatService struct {
	conversations conversationRepository
	streamer      chat.Streamer
	logger        *slog.Logger
}

func NewChatService(conversations conversationRepository, streamer chat.Streamer, logger *slog.Logger) *ChatService {
	return &ChatService{
		conversations: conversations,
		streamer:      streamer,
		logger:        logger,
	}
}

// Send streams the assistant reply to the last user message of transcript.
// An empty conversationID starts a new conversation whose id is returned.
//
// Nothing is stored if the chat service rejects the request. Once the stream
// has opened, the user message and whatever reply arrived are stored when the
// stream ends, even if it ended in an error.
func (s *ChatService) Send(ctx context.Context, conversationID string, transcript []domain.Message) (string, <-chan chat.StreamEvent, error) {
	n := len(transcript)
	if n == 0 || transcript[n-1].Role != domain.RoleUser {
		return "", nil, chat.ErrNoUserMessage
	}

	isNew := conversationID == ""
	if !isNew {
		if _, err := uuid.Parse(conversationID); err != nil {
			return "", nil, ErrConversationNotFound
		}
		c, err := s.conversations.GetByID(ctx, conversationID)
		if err != nil {
			return "", nil, fmt.Errorf("failed to get conversation: %w", err)
		}
		if c == nil {
			return "", nil, ErrConversationNotFound
		}
	}

	s.logger.Info("chat exchange started", "conversation_id", conversationID, "messages", n)
	raw, err := s.streamer.StartStream(ctx, transcript)
	if err != nil {
		return "", nil, fmt.Errorf("failed to start chat stream: %w", err)
	}

	// Storage outlives the request so an aborted client still leaves a record.
	storeCtx := context.WithoutCancel(ctx)

	if isNew {
		conversationID = uuid.NewString()
		if _, err := s.conversations.Create(storeCtx, conversationID); err != nil {
			s.drain(raw)
			return "", nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		if err := s.conversations.AppendMessages(storeCtx, conversationID, transcript[:n-1]); err != nil {
			s.drain(raw)
			return "", nil, fmt.Errorf("failed to store history: %w", err)
		}
	}

	out := make(chan chat.StreamEvent, 16)
	go func() {
		defer close(out)

		var reply string
		var streamErr error
		for ev := range raw {
			if ev.Err != nil {
				streamErr = ev.Err
			} else {
				reply = ev.Content
			}
			// Keep consuming after the caller leaves so the reply is stored.
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		msgs := []domain.Message{transcript[n-1]}
		if reply != "" {
			msgs = append(msgs, domain.Message{Role: domain.RoleAssistant, Content: reply})
		}
		if err := s.conversations.AppendMessages(storeCtx, conversationID, msgs); err != nil {
			s.logger.Error("failed to store chat exchange", "conversation_id", conversationID, "error", err)
		}

		if streamErr != nil {
			s.logger.Error("chat exchange failed", "conversation_id", conversationID, "chars", len(reply), "error", streamErr)
			return
		}
		s.logger.Info("chat exchange complete", "conversation_id", conversationID, "chars", len(reply))
	}()

	return conversationID, out, nil
}

// drain discards a stream that will not be forwarded.
func (s *ChatService) drain(ch <-chan chat.StreamEvent) {
	go func() {
		for range ch {
		}
	}()
}

// Transcript returns the stored messages of a conversation in order.
func (s *ChatService) Transcript(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, ErrConversationNotFound
	}
	c, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if c == nil {
		return nil, ErrConversationNotFound
	}

	stored, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, domain.Message{Role: m.Role, Content: m.Content})
	}
	return msgs, nil
}
