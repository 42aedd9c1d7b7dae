package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vbonduro/ilmigreen/internal/chat"
	"github.com/vbonduro/ilmigreen/internal/domain"
	"github.com/vbonduro/ilmigreen/internal/service"
	"github.com/vbonduro/ilmigreen/internal/upstream"
)

const (
	maxChatBody     = 1024 * 1024
	maxChatMessages = 100

	msgChatFailed = "Terjadi kesalahan saat mengirim pesan"
)

func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	if err := s.renderPage(w,
		map[string]any{"Greeting": chat.Greeting, "ActiveNav": "chat"},
		"base.html", "pages/chat.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

type chatRequest struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []domain.Message `json:"messages"`
}

// deltaChunk mirrors the OpenAI streaming chunk so browser clients can reuse
// a standard parser.
type deltaChunk struct {
	Choices []deltaChoice `json:"choices"`
}

type deltaChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

func newDeltaChunk(text string) deltaChunk {
	var c deltaChoice
	c.Delta.Content = text
	return deltaChunk{Choices: []deltaChoice{c}}
}

func validateChatMessages(msgs []domain.Message) error {
	if len(msgs) == 0 {
		return errors.New("messages required")
	}
	if len(msgs) > maxChatMessages {
		return errors.New("too many messages")
	}
	for i, m := range msgs {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	return nil
}

// chatFailure maps an error from starting a chat exchange to a status.
func chatFailure(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrNoUserMessage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrConversationNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, upstream.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, upstream.ErrCreditsExhausted):
		return http.StatusPaymentRequired, msgCreditsExhausted
	default:
		return http.StatusInternalServerError, msgChatFailed
	}
}

// handleChat relays one chat exchange. The reply is re-emitted as
// OpenAI-style delta chunks terminated by "data: [DONE]". A failure after the
// stream opened is sent as an "error" event and the stream ends without the
// sentinel.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "permintaan tidak valid"})
		return
	}
	if err := validateChatMessages(req.Messages); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	conversationID, events, err := s.chat.Send(r.Context(), req.ConversationID, req.Messages)
	if err != nil {
		status, msg := chatFailure(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("chat failed", "conversation_id", req.ConversationID, "error", err)
		}
		s.writeJSON(w, status, errorResponse{Error: msg})
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Conversation-ID", conversationID)
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}
	flush()

	var (
		sent     int
		writeErr error
		failed   bool
	)
	for ev := range events {
		if writeErr != nil {
			continue
		}
		if ev.Err != nil {
			failed = true
			s.logger.Error("chat stream failed", "conversation_id", conversationID, "error", ev.Err)
			writeErr = s.writeEvent(w, "error", errorResponse{Error: msgChatFailed})
			flush()
			continue
		}
		if len(ev.Content) <= sent {
			continue
		}
		writeErr = s.writeEvent(w, "", newDeltaChunk(ev.Content[sent:]))
		sent = len(ev.Content)
		flush()
	}

	if writeErr != nil || failed || r.Context().Err() != nil {
		return
	}
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		s.logger.Error("write done event failed", "conversation_id", conversationID, "error", err)
	}
	flush()
}

// writeEvent writes one data frame, preceded by an event name when set.
func (s *Server) writeEvent(w http.ResponseWriter, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

type conversationResponse struct {
	ID       string           `json:"id"`
	Messages []domain.Message `json:"messages"`
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := s.chat.Transcript(r.Context(), id)
	if errors.Is(err, service.ErrConversationNotFound) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("get conversation failed", "conversation_id", id, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "gagal memuat percakapan"})
		return
	}
	s.writeJSON(w, http.StatusOK, conversationResponse{ID: id, Messages: msgs})
}
