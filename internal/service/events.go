package service

import (
	"context"
	"time"

	"github.com/rowan/attest/internal/domain"
	"github.com/rowan/attest/internal/prompts"
)

// EventType identifies a stream event. A stream carries any number of phase
// and highlight events and terminates with exactly one done or error event.
type EventType string

const (
	EventPhase     EventType = "phase"
	EventHighlight EventType = "highlight"
	EventError     EventType = "error"
	EventDone      EventType = "done"
)

// JobSummary is the structured result attached to a done event and to the
// job row on success.
type JobSummary struct {
	EvidenceCount int `json:"evidence_count"`
	ClaimsCreated int `json:"claims_created"`
	ClaimsUpdated int `json:"claims_updated"`
}

// Event is one entry in a submission's live progress stream.
type Event struct {
	Type      EventType         `json:"type"`
	Phase     domain.JobPhase   `json:"phase,omitempty"`
	Highlight *domain.Highlight `json:"highlight,omitempty"`
	Message   string            `json:"message,omitempty"`
	Summary   *JobSummary       `json:"summary,omitempty"`
}

// eventStream wraps the bounded channel an SSE handler drains. Sends never
// block the pipeline: if the consumer is slow a non-terminal event is
// dropped, while terminal events wait until delivered or the consumer is
// gone. A nil eventStream is valid and discards everything, which is how the
// non-streaming submission path runs the same pipeline code.
type eventStream struct {
	ch chan Event
}

func newEventStream(buffer int) *eventStream {
	if buffer <= 0 {
		buffer = 64
	}
	return &eventStream{ch: make(chan Event, buffer)}
}

// Events returns the receive side for the stream consumer.
func (s *eventStream) Events() <-chan Event {
	return s.ch
}

// send queues a non-terminal event, dropping it if the consumer lags.
func (s *eventStream) send(e Event) {
	if s == nil {
		return
	}
	select {
	case s.ch <- e:
	default:
	}
}

// sendTerminal queues the final event, waiting for the consumer unless the
// watch context is already gone, then closes the stream.
func (s *eventStream) sendTerminal(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	select {
	case s.ch <- e:
	case <-ctx.Done():
	}
	close(s.ch)
}

// startPhaseTicker emits rotating placeholder highlights while a phase's
// underlying call is in flight, so a watching caller always sees forward
// motion during long single calls. The returned stop function cancels the
// ticker; it must be called the instant the phase's real result arrives.
func startPhaseTicker(ctx context.Context, phase domain.JobPhase, interval time.Duration, emit func(domain.Highlight)) (stop func()) {
	messages := prompts.PhaseTickerMessages[string(phase)]
	if len(messages) == 0 || interval <= 0 {
		return func() {}
	}

	tickerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-tickerCtx.Done():
				return
			case <-ticker.C:
				emit(domain.Highlight{
					Kind:    domain.HighlightFound,
					Message: messages[i%len(messages)],
					At:      time.Now(),
				})
				i++
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
