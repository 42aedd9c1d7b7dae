package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	dataPrefix = "data: "

	// Sentinel is the payload that marks the end of the stream.
	Sentinel = "[DONE]"
)

// ErrMalformedFrame is returned by Interpret when a data payload is not a
// JSON object.
var ErrMalformedFrame = errors.New("malformed frame")

// RecordKind tells data records apart from lines to skip.
type RecordKind int

const (
	RecordIgnore RecordKind = iota
	RecordData
)

// Record is a classified stream line. Payload is only set for RecordData.
type Record struct {
	Kind    RecordKind
	Payload string
}

// Classify sorts a raw line into a data record or something to skip.
// Comments (":" prefix), blank lines and unknown field names are ignored.
func Classify(line string) Record {
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
		return Record{Kind: RecordIgnore}
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return Record{Kind: RecordIgnore}
	}
	return Record{Kind: RecordData, Payload: strings.TrimSpace(line[len(dataPrefix):])}
}

// EventKind is the meaning of one data payload.
type EventKind int

const (
	EventEmpty EventKind = iota
	EventFragment
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventFragment:
		return "fragment"
	case EventDone:
		return "done"
	default:
		return "empty"
	}
}

// Event is the interpretation of one data payload.
type Event struct {
	Kind EventKind
	Text string
}

// chunk is the subset of an OpenAI-style streaming chunk that carries text.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Interpret turns a data payload into an Event. The sentinel yields
// EventDone without being parsed. A payload without choices[0].delta.content
// (role-only or usage chunks) yields EventEmpty.
func Interpret(payload string) (Event, error) {
	if payload == Sentinel {
		return Event{Kind: EventDone}, nil
	}

	var c chunk
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == "" {
		return Event{Kind: EventEmpty}, nil
	}
	return Event{Kind: EventFragment, Text: c.Choices[0].Delta.Content}, nil
}
