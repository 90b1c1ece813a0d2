// Package llm abstracts the generative backend behind a two-operation
// capability interface so the chat pipeline never depends on which
// concrete model serves it.
package llm

import "context"

// Stream yields generated text fragments in generation order. Recv
// returns io.EOF after the last fragment.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Generator is the generation capability the chat pipeline consumes.
type Generator interface {
	// CompleteOnce returns the full response for a prompt in one call.
	CompleteOnce(ctx context.Context, prompt string) (string, error)

	// CompleteStreaming returns an incremental fragment stream for a
	// prompt. An error here means generation failed before any output.
	CompleteStreaming(ctx context.Context, prompt string) (Stream, error)
}
