package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vbonduro/ilmigreen/internal/domain"
)

// readSize is the chunk size requested from the transport on each read.
const readSize = 4096

// State is the lifecycle position of a Reader.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Snapshot is the transcript as it stands after one fragment.
type Snapshot struct {
	Transcript []domain.Message
	Content    string
}

// Reader consumes one streamed chat response. It is single use: create a new
// Reader for every exchange.
type Reader struct {
	src    io.Reader
	dec    Decoder
	acc    *Accumulator
	logger *slog.Logger
	state  State

	// retryLine is the data line most recently pushed back after a failed
	// parse. A second failure on the same line discards it.
	retryLine string
	malformed int

	checkPayload func(payload string) error
}

// Option configures a Reader.
type Option func(*Reader)

// WithPayloadCheck runs check on every data payload before it is interpreted.
// A non-nil error fails the stream with that error; fragments already
// yielded are kept.
func WithPayloadCheck(check func(payload string) error) Option {
	return func(r *Reader) {
		r.checkPayload = check
	}
}

func NewReader(src io.Reader, transcript []domain.Message, logger *slog.Logger, opts ...Option) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reader{
		src:    src,
		acc:    NewAccumulator(transcript),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads the stream to completion, calling yield with a snapshot after
// every fragment. It returns nil when the sentinel is seen or the stream ends
// cleanly. Snapshots already yielded are never retracted, even on error.
func (r *Reader) Run(ctx context.Context, yield func(Snapshot)) error {
	if r.state != StateIdle {
		return fmt.Errorf("stream reader already used (state %s)", r.state)
	}

	buf := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			r.fail()
			return err
		}

		n, readErr := r.src.Read(buf)
		if n > 0 {
			r.state = StateStreaming
			r.dec.Write(buf[:n])
			done, err := r.drain(ctx, yield, true)
			if err != nil {
				r.fail()
				return err
			}
			if done {
				r.complete()
				return nil
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			// Lines pushed back for a retry get one final pass. An
			// unterminated tail is dropped.
			if _, err := r.drain(ctx, yield, false); err != nil {
				r.fail()
				return err
			}
			r.complete()
			return nil
		default:
			r.fail()
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("failed to read stream: %w", readErr)
		}
	}
}

// drain interprets every complete buffered line. When allowRetry is set, a
// line that fails to parse for the first time is pushed back and draining
// stops until more bytes arrive.
func (r *Reader) drain(ctx context.Context, yield func(Snapshot), allowRetry bool) (done bool, err error) {
	for {
		line, ok := r.dec.Next()
		if !ok {
			return false, nil
		}

		rec := Classify(line)
		if rec.Kind != RecordData {
			continue
		}
		if r.checkPayload != nil {
			if err := r.checkPayload(rec.Payload); err != nil {
				return false, err
			}
		}

		ev, err := Interpret(rec.Payload)
		if err != nil {
			if allowRetry && line != r.retryLine {
				r.retryLine = line
				r.dec.Unread(line)
				return false, nil
			}
			r.retryLine = ""
			r.malformed++
			r.logger.Warn("discarding malformed stream frame", "error", err, "bytes", len(line))
			continue
		}
		r.retryLine = ""

		if ev.Kind == EventDone {
			return true, nil
		}

		transcript, changed := r.acc.Apply(ev)
		if !changed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		yield(Snapshot{Transcript: transcript, Content: r.acc.Content()})
	}
}

func (r *Reader) complete() {
	r.state = StateCompleted
	r.dec.Reset()
	r.logger.Debug("chat stream completed", "chars", len(r.acc.Content()), "malformed_frames", r.malformed)
}

func (r *Reader) fail() {
	r.state = StateFailed
	r.dec.Reset()
}

func (r *Reader) State() State {
	return r.state
}

// Malformed reports how many data lines were discarded as unparseable.
func (r *Reader) Malformed() int {
	return r.malformed
}

// Transcript returns the transcript as of the last fragment.
func (r *Reader) Transcript() []domain.Message {
	return r.acc.Transcript()
}

// Content returns the accumulated assistant reply.
func (r *Reader) Content() string {
	return r.acc.Content()
}
