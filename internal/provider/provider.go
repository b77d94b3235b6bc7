// Package provider abstracts the model backend behind small interfaces so
// session and chat logic can be tested without network access.
package provider

import (
	"context"
	"iter"
)

// Usage is the token accounting attached to a completed exchange.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Chunk is one piece of a streamed model reply. Text carries an answer
// fragment; Usage, when present, carries the authoritative counts for the
// whole exchange and arrives on the terminal chunk.
type Chunk struct {
	Text  string
	Usage *Usage
}

// Conversation is a single multi-turn exchange with the model. One message
// is in flight at a time; callers serialize sends.
type Conversation interface {
	// SendStream submits one user message and yields reply chunks in
	// arrival order. Iteration stops on the first error.
	SendStream(ctx context.Context, text string) iter.Seq2[Chunk, error]
}

// Client is the model backend.
type Client interface {
	// CountTokens returns the model's token count for the given text.
	CountTokens(ctx context.Context, text string) (int, error)

	// StartChat opens a fresh conversation primed with a system
	// instruction.
	StartChat(ctx context.Context, instruction string) (Conversation, error)
}
