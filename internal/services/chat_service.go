package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
	"github.com/fitbuddy/go-coach-backend/internal/llm"
	"github.com/fitbuddy/go-coach-backend/internal/repo"
)

// State is the lifecycle of a chat turn within a session.
type State int

const (
	// StateIdle means no request is in flight; input is accepted.
	StateIdle State = iota
	// StateAwaiting means a request was dispatched but no fragment has
	// arrived yet.
	StateAwaiting
	// StateStreaming means fragments are arriving and the placeholder turn
	// is growing.
	StateStreaming
	// StateError means the last turn ended in a synthesized error notice.
	// Input is accepted again immediately.
	StateError
)

func (s State) String() string {
	switch s {
	case StateAwaiting:
		return "awaiting_response"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// DefaultMaxPromptRunes caps submitted prompts when the service is not
// configured with its own limit.
const DefaultMaxPromptRunes = 4000

type flight struct {
	userID string
	state  State
}

// ChatService is the turn controller. It validates prompts, guards each
// session with an at-most-one-in-flight rule, builds the completion request
// (persona plus full persisted history), drives the remote client, and when
// the turn terminates, for any reason, persists the user turn and the
// assistant outcome in one transaction and refreshes the session metadata.
//
// Remote failures never surface as errors to the caller: they become an
// assistant notice in the transcript, persisted like any other turn. Errors
// returned by Send are contract violations only (unknown session, empty or
// oversized prompt, busy session).
type ChatService struct {
	// DB is the shared GORM handle.
	DB *gorm.DB

	// Client performs the remote completion calls.
	Client llm.Client

	// Sessions refreshes titles and previews after each turn.
	Sessions *SessionService

	// MaxPromptRunes caps prompt length; 0 means DefaultMaxPromptRunes.
	MaxPromptRunes int

	mu      sync.Mutex
	flights map[string]*flight
}

func (s *ChatService) maxPrompt() int {
	if s.MaxPromptRunes > 0 {
		return s.MaxPromptRunes
	}
	return DefaultMaxPromptRunes
}

// State reports the current lifecycle state of a session.
func (s *ChatService) State(sessionID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flights[sessionID]; ok {
		return f.state
	}
	return StateIdle
}

// Busy reports whether any of the user's sessions has a request in flight.
// Session switches are refused while this holds.
func (s *ChatService) Busy(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.flights {
		if f.userID == userID && (f.state == StateAwaiting || f.state == StateStreaming) {
			return true
		}
	}
	return false
}

func (s *ChatService) begin(userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flights == nil {
		s.flights = make(map[string]*flight)
	}
	if f, ok := s.flights[sessionID]; ok && (f.state == StateAwaiting || f.state == StateStreaming) {
		return ErrSessionBusy
	}
	s.flights[sessionID] = &flight{userID: userID, state: StateAwaiting}
	return nil
}

func (s *ChatService) markStreaming(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flights[sessionID]; ok && f.state == StateAwaiting {
		f.state = StateStreaming
	}
}

func (s *ChatService) finish(sessionID string, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flights[sessionID]; ok {
		if failed {
			f.state = StateError
		} else {
			delete(s.flights, sessionID)
		}
	}
}

// Send submits one user prompt to a session and returns the persisted
// assistant message once the turn terminates. When onDelta is non-nil the
// remote call streams and every fragment is forwarded in arrival order;
// otherwise the full response is fetched in one call.
//
// A remote failure still returns a message: the synthesized error notice,
// already persisted as the assistant turn.
func (s *ChatService) Send(ctx context.Context, userID, sessionID, prompt string, onDelta llm.StreamFunc) (*domain.ChatMessage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if utf8.RuneCountInString(prompt) > s.maxPrompt() {
		return nil, ErrTooLong
	}

	profile, err := repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if _, err := s.Sessions.Get(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	if err := s.begin(userID, sessionID); err != nil {
		return nil, err
	}

	history, err := repo.ListMessages(s.DB.WithContext(ctx), sessionID, 0)
	if err != nil {
		s.finish(sessionID, true)
		return nil, err
	}

	turns := NewTranscript(nil)
	for _, m := range history {
		_ = turns.Append(m.Role, m.Content)
	}
	_ = turns.Append(llm.RoleUser, prompt)

	req := llm.Request{
		System: BuildPersona(profile),
		Turns:  turns.Snapshot(),
	}

	// The placeholder assistant turn exists only in memory until the remote
	// call terminates; nothing durable is written mid-stream.
	_ = turns.Append(llm.RoleAssistant, "")

	var answer string
	if onDelta != nil {
		var buf strings.Builder
		answer, err = s.Client.Stream(ctx, req, func(delta string) error {
			s.markStreaming(sessionID)
			buf.WriteString(delta)
			if rerr := turns.ReplaceLast(buf.String()); rerr != nil {
				return rerr
			}
			return onDelta(delta)
		})
	} else {
		answer, err = s.Client.Complete(ctx, req)
	}

	failed := err != nil
	if failed {
		answer = userFacingMessage(err)
	}
	_ = turns.ReplaceLast(answer)

	msg, perr := s.persistTurn(ctx, userID, sessionID, prompt, answer)
	s.finish(sessionID, failed)
	if perr != nil {
		return nil, perr
	}
	return msg, nil
}

// persistTurn writes the user prompt and the assistant outcome in a single
// transaction, then refreshes the session's derived title and preview.
func (s *ChatService) persistTurn(ctx context.Context, userID, sessionID, prompt, answer string) (*domain.ChatMessage, error) {
	var out *domain.ChatMessage
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.CreateMessage(tx, sessionID, domain.RoleUser, prompt); err != nil {
			return err
		}
		m, err := repo.CreateMessage(tx, sessionID, domain.RoleAssistant, answer)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.Touch(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return out, nil
}

// userFacingMessage converts a remote-call failure into the assistant notice
// that replaces the placeholder in the transcript.
func userFacingMessage(err error) string {
	if rl, ok := llm.IsRateLimit(err); ok {
		if rl.RetryAfter > 0 {
			return fmt.Sprintf("⚠️ Rate limit reached. Please wait %d seconds and try again.", rl.RetryAfter)
		}
		return "⚠️ Rate limit reached. Please try again in a moment."
	}
	switch {
	case errors.Is(err, llm.ErrUnreachable), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "⚠️ No internet connection. Please check your network and try again."
	default:
		return "⚠️ Sorry, I couldn't process that request. Please try again."
	}
}
