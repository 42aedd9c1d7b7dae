package stream

import (
	"slices"
	"strings"

	"github.com/vbonduro/ilmigreen/internal/domain"
)

// Accumulator folds fragments into the assistant reply of one exchange and
// publishes transcript snapshots.
type Accumulator struct {
	transcript []domain.Message
	content    strings.Builder
}

// NewAccumulator starts from a copy of transcript, which should end with the
// user message being answered.
func NewAccumulator(transcript []domain.Message) *Accumulator {
	return &Accumulator{transcript: slices.Clone(transcript)}
}

// Apply folds ev into the transcript. For a fragment it returns a fresh
// snapshot and true; Done and Empty events leave the transcript untouched.
func (a *Accumulator) Apply(ev Event) ([]domain.Message, bool) {
	if ev.Kind != EventFragment {
		return nil, false
	}
	a.content.WriteString(ev.Text)
	a.publish(a.content.String())
	return a.Transcript(), true
}

// publish replaces the trailing assistant entry with content, or appends one
// when the transcript does not end with an assistant entry. Publishing the
// same content twice leaves the transcript unchanged.
func (a *Accumulator) publish(content string) {
	if n := len(a.transcript); n > 0 && a.transcript[n-1].Role == domain.RoleAssistant {
		a.transcript[n-1].Content = content
		return
	}
	a.transcript = append(a.transcript, domain.Message{Role: domain.RoleAssistant, Content: content})
}

// Content returns the assistant text accumulated so far.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Transcript returns a copy of the current transcript.
func (a *Accumulator) Transcript() []domain.Message {
	return slices.Clone(a.transcript)
}
