package services

import (
	"github.com/fitbuddy/go-coach-backend/internal/llm"
)

// Transcript is the in-memory message sequence the controller mutates while a
// completion is in flight. Persisted rows are only written when the turn
// terminates, so the transcript is where the placeholder assistant turn lives
// and grows as deltas arrive.
type Transcript struct {
	msgs []llm.Message
}

// NewTranscript seeds a transcript from previously persisted turns.
func NewTranscript(seed []llm.Message) *Transcript {
	t := &Transcript{msgs: make([]llm.Message, len(seed))}
	copy(t.msgs, seed)
	return t
}

// Append adds a turn to the end of the sequence.
func (t *Transcript) Append(role, content string) error {
	if role != llm.RoleUser && role != llm.RoleAssistant {
		return ErrInvalidState
	}
	t.msgs = append(t.msgs, llm.Message{Role: role, Content: content})
	return nil
}

// ReplaceLast swaps the content of the most recent turn, which must be an
// assistant turn. Used to grow the streaming placeholder and to substitute an
// error notice for a partial answer.
func (t *Transcript) ReplaceLast(content string) error {
	if len(t.msgs) == 0 || t.msgs[len(t.msgs)-1].Role != llm.RoleAssistant {
		return ErrInvalidState
	}
	t.msgs[len(t.msgs)-1].Content = content
	return nil
}

// Len reports the number of turns.
func (t *Transcript) Len() int { return len(t.msgs) }

// Last returns the most recent turn, or a zero message when empty.
func (t *Transcript) Last() llm.Message {
	if len(t.msgs) == 0 {
		return llm.Message{}
	}
	return t.msgs[len(t.msgs)-1]
}

// Snapshot returns a copy of the sequence safe to hand to the completion
// client.
func (t *Transcript) Snapshot() []llm.Message {
	out := make([]llm.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}
