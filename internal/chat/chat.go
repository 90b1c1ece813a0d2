// Package chat runs retrieval-augmented exchanges: it grounds a query
// in stored summaries and session history, drives the generative
// backend, and persists the completed turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/intelverse/intelverse-go/internal/llm"
	"github.com/intelverse/intelverse-go/internal/logger"
	"github.com/intelverse/intelverse-go/internal/retriever"
	"github.com/intelverse/intelverse-go/internal/session"
	"github.com/intelverse/intelverse-go/internal/store"
)

var (
	// ErrInvalidInput marks a client error (empty query). Not retryable.
	ErrInvalidInput = errors.New("query is required")

	// ErrGenerationFailure marks a backend model failure before any
	// output was produced.
	ErrGenerationFailure = errors.New("generation failed")
)

const (
	retrievalLimit = 3
	historyWindow  = 5

	promptPreamble = `You are an AI assistant analyzing real-time data from various sources.
Provide concise, informative responses based on the available context.
If asked about recent events or trends, focus on the provided source data.`
)

// Exchange lifecycle states.
var (
	statePending         stateless.State = "Pending"
	stateContextGathered stateless.State = "ContextGathered"
	stateGenerating      stateless.State = "Generating"
	stateCompleted       stateless.State = "Completed"
	stateFailedBeforeOut stateless.State = "FailedBeforeOutput"
	stateFailedMidStream stateless.State = "FailedMidStream"
)

var (
	triggerContextReady stateless.Trigger = "ContextReady"
	triggerFirstOutput  stateless.Trigger = "FirstOutput"
	triggerCompleted    stateless.Trigger = "Completed"
	triggerFailedEarly  stateless.Trigger = "FailedEarly"
	triggerFailedMid    stateless.Trigger = "FailedMid"
)

// newExchangeFSM builds the per-exchange state machine. History is
// written only from Completed; both failure states leave it untouched.
func newExchangeFSM() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(statePending)
	fsm.Configure(statePending).
		Permit(triggerContextReady, stateContextGathered).
		Permit(triggerFailedEarly, stateFailedBeforeOut)
	fsm.Configure(stateContextGathered).
		Permit(triggerFirstOutput, stateGenerating).
		Permit(triggerFailedEarly, stateFailedBeforeOut)
	fsm.Configure(stateGenerating).
		Permit(triggerCompleted, stateCompleted).
		Permit(triggerFailedMid, stateFailedMidStream)
	return fsm
}

// Coordinator assembles prompts and runs exchanges against the
// generation backend.
type Coordinator struct {
	retriever *retriever.Retriever
	sessions  *session.Store
	generator llm.Generator
}

// NewCoordinator wires a coordinator from its collaborators.
func NewCoordinator(r *retriever.Retriever, s *session.Store, g llm.Generator) *Coordinator {
	return &Coordinator{retriever: r, sessions: s, generator: g}
}

// gatherContext fetches the retrieval set and the recent history for
// one exchange.
func (c *Coordinator) gatherContext(ctx context.Context, sessionID, query string) ([]store.Summary, []session.Message, error) {
	summaries, err := c.retriever.Retrieve(ctx, query, retrievalLimit)
	if err != nil {
		return nil, nil, err
	}
	history := c.sessions.RecentContext(sessionID, historyWindow)
	return summaries, history, nil
}

// buildPrompt embeds prior turns, retrieved summaries and the raw
// query under a fixed conversational preamble.
func buildPrompt(history []session.Message, summaries []store.Summary, query string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\nPrevious conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("\nCurrent sources:\n")
	for _, s := range summaries {
		b.WriteString(s.Body)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nUser query: %s\n\nResponse (be natural and conversational):", query)
	return b.String()
}

func citations(summaries []store.Summary) []Source {
	out := make([]Source, len(summaries))
	for i, s := range summaries {
		out[i] = Source{Title: s.Title, URL: s.URL, Content: s.Body}
	}
	return out
}

func (c *Coordinator) persistExchange(sessionID, query, answer string) {
	now := time.Now().UTC()
	c.sessions.AppendExchange(sessionID,
		session.Message{Role: session.RoleUser, Content: query, Timestamp: now},
		session.Message{Role: session.RoleAssistant, Content: answer, Timestamp: now},
	)
}

// RunExchange streams one exchange, calling emit once per fragment and
// once for the terminal event. Contract:
//
//   - Generation failure before any fragment: nothing is emitted, the
//     error is returned and history is untouched.
//   - Failure after at least one fragment: a terminal {error, done}
//     event is emitted, nil is returned and history is untouched.
//   - An emit error (client gone) stops the stream with no further
//     emits and no history write.
//   - Success: every fragment, then a terminal {done} event, then the
//     (user, assistant) pair is appended atomically.
func (c *Coordinator) RunExchange(ctx context.Context, sessionID, query string, emit func(Event) error) error {
	if strings.TrimSpace(query) == "" {
		return ErrInvalidInput
	}
	fsm := newExchangeFSM()

	summaries, history, err := c.gatherContext(ctx, sessionID, query)
	if err != nil {
		_ = fsm.Fire(triggerFailedEarly)
		return err
	}
	if err := fsm.Fire(triggerContextReady); err != nil {
		return err
	}
	sources := citations(summaries)

	stream, err := c.generator.CompleteStreaming(ctx, buildPrompt(history, summaries, query))
	if err != nil {
		_ = fsm.Fire(triggerFailedEarly)
		return fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if fsm.MustState() != stateGenerating {
				// Nothing delivered yet: surface a plain error, the
				// stream's terminal state was never opened.
				_ = fsm.Fire(triggerFailedEarly)
				return fmt.Errorf("%w: %v", ErrGenerationFailure, err)
			}
			_ = fsm.Fire(triggerFailedMid)
			logger.L.Warn("generation failed mid-stream", "sessionId", sessionID, "error", err)
			return emit(Event{Err: "Failed to process chat query", Done: true})
		}

		if fsm.MustState() != stateGenerating {
			if err := fsm.Fire(triggerFirstOutput); err != nil {
				return err
			}
		}
		full.WriteString(fragment)
		if err := emit(Event{Text: fragment, Sources: sources, Done: false}); err != nil {
			logger.L.Debug("client went away mid-stream", "sessionId", sessionID, "error", err)
			return err
		}
	}

	// Zero-fragment streams still complete: fire through Generating so
	// the terminal event and history append happen on the same path.
	if fsm.MustState() != stateGenerating {
		if err := fsm.Fire(triggerFirstOutput); err != nil {
			return err
		}
	}
	if err := fsm.Fire(triggerCompleted); err != nil {
		return err
	}
	if err := emit(Event{Done: true}); err != nil {
		return err
	}
	c.persistExchange(sessionID, query, full.String())
	return nil
}

// Answer runs the non-streaming variant of an exchange: one blocking
// generation call, then the history append.
func (c *Coordinator) Answer(ctx context.Context, sessionID, query string) (Reply, error) {
	if strings.TrimSpace(query) == "" {
		return Reply{}, ErrInvalidInput
	}
	summaries, history, err := c.gatherContext(ctx, sessionID, query)
	if err != nil {
		return Reply{}, err
	}
	answer, err := c.generator.CompleteOnce(ctx, buildPrompt(history, summaries, query))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}
	c.persistExchange(sessionID, query, answer)
	return Reply{Answer: answer, Sources: citations(summaries)}, nil
}

// History returns the full message history for a session.
func (c *Coordinator) History(sessionID string) []session.Message {
	return c.sessions.History(sessionID)
}
