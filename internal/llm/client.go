// Package llm implements the remote completion client: it sends the
// accumulated conversation plus a persona instruction to an OpenAI-compatible
// chat-completions endpoint and returns the assistant reply, either as one
// completed block or as an incremental stream of text fragments.
//
// The client is a pure transport adapter: it never mutates conversation state,
// it only returns data (or an error from the taxonomy in errors.go) for the
// chat service to apply.
package llm

import "context"

// Wire roles accepted by chat-completions endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation as sent over the wire.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request carries one completion call: the persona instruction, the ordered
// conversation turns (without any in-flight placeholder), and the fixed
// generation parameters.
type Request struct {
	// System is the persona instruction. It is attached to every request so
	// topic scoping holds for the whole session, not just the first turn.
	System string
	// Turns is the conversation so far, oldest first.
	Turns []Message
	// Generation parameters; zero values fall back to the client defaults.
	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int
}

// StreamFunc receives one text fragment at a time during incremental
// delivery. Returning an error aborts the stream and propagates the error to
// the Stream caller.
type StreamFunc func(delta string) error

// Client is the contract the chat service depends on. Implementations must be
// safe for concurrent use and must honor the provided context for
// cancellation and timeouts.
type Client interface {
	// Complete performs a full-response call and returns the assistant text.
	Complete(ctx context.Context, req Request) (string, error)

	// Stream performs an incremental call, invoking fn for every fragment in
	// arrival order. It returns the concatenation of all fragments once the
	// stream terminates normally.
	Stream(ctx context.Context, req Request, fn StreamFunc) (string, error)
}
