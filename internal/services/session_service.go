package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
	"github.com/fitbuddy/go-coach-backend/internal/repo"
	"github.com/fitbuddy/go-coach-backend/internal/utils"
)

// Default display caps for derived session metadata.
const (
	defaultTitleMaxRunes   = 40
	defaultPreviewMaxRunes = 50
)

// SessionService manages the per-user session registry: creation with the
// synthesized greeting, listing, metadata derivation (title from the first
// user turn, preview from the last turn), the active-session pointer, and
// removal with automatic replacement so the user always has exactly one
// active session.
type SessionService struct {
	// DB is the shared GORM handle.
	DB *gorm.DB

	// TitleMaxRunes caps derived titles; 0 means the default (40).
	TitleMaxRunes int

	// PreviewMaxRunes caps derived previews; 0 means the default (50).
	PreviewMaxRunes int
}

func (s *SessionService) titleMax() int {
	if s.TitleMaxRunes > 0 {
		return s.TitleMaxRunes
	}
	return defaultTitleMaxRunes
}

func (s *SessionService) previewMax() int {
	if s.PreviewMaxRunes > 0 {
		return s.PreviewMaxRunes
	}
	return defaultPreviewMaxRunes
}

// Create opens a fresh session for userID, persists the greeting as its first
// assistant turn, and makes it the active session. The user must have
// completed onboarding: the greeting is personalized with the profile name.
func (s *SessionService) Create(ctx context.Context, userID string) (*domain.ChatSession, error) {
	profile, err := repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	var sess *domain.ChatSession
	greeting := Greeting(profile.Name)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		sess, txErr = repo.CreateSession(ctx, tx, userID, "")
		if txErr != nil {
			return txErr
		}
		if _, txErr = repo.CreateMessage(tx, sess.ID, domain.RoleAssistant, greeting); txErr != nil {
			return txErr
		}
		if txErr = repo.UpdateSessionMeta(ctx, tx, sess.ID, userID, sess.Title, utils.TruncateRunes(greeting, s.previewMax())); txErr != nil {
			return txErr
		}
		return repo.SetActiveSession(ctx, tx, userID, sess.ID)
	})
	if err != nil {
		return nil, err
	}
	sess.Preview = utils.TruncateRunes(greeting, s.previewMax())
	return sess, nil
}

// List returns the user's sessions newest-first together with the active
// session id ("" when the user has no sessions yet).
func (s *SessionService) List(ctx context.Context, userID string) ([]domain.ChatSession, string, error) {
	sessions, err := repo.ListSessions(ctx, s.DB, userID)
	if err != nil {
		return nil, "", err
	}
	pref, err := repo.GetPreference(ctx, s.DB, userID)
	if err != nil {
		return nil, "", err
	}
	return sessions, pref.ActiveSessionID, nil
}

// Get fetches one session owned by userID.
func (s *SessionService) Get(ctx context.Context, userID, id string) (*domain.ChatSession, error) {
	sess, err := repo.GetSession(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// History loads a session's persisted turns oldest-first. A session whose
// store came back empty still presents the greeting, synthesized in memory,
// so the transcript is never blank.
func (s *SessionService) History(ctx context.Context, userID, id string) ([]domain.ChatMessage, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	msgs, err := repo.ListMessages(s.DB.WithContext(ctx), id, 0)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		name := "there"
		if profile, perr := repo.GetProfile(ctx, s.DB, userID); perr == nil {
			name = profile.Name
		}
		msgs = []domain.ChatMessage{{
			SessionID: id,
			Role:      domain.RoleAssistant,
			Content:   Greeting(name),
		}}
	}
	return msgs, nil
}

// Activate moves the active-session pointer to id. Callers enforce that no
// completion is in flight before switching.
func (s *SessionService) Activate(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return repo.SetActiveSession(ctx, s.DB, userID, id)
}

// Touch re-derives a session's title and preview from its persisted turns:
// the title is the first user turn (sessions with no user turn yet keep the
// default), the preview is the last turn of either role. Both are truncated
// with an ellipsis. Touch is idempotent; calling it twice in a row leaves the
// row unchanged.
func (s *SessionService) Touch(ctx context.Context, userID, id string) error {
	sess, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	title := sess.Title
	first, err := repo.FirstUserMessage(ctx, s.DB, id)
	switch {
	case err == nil:
		title = utils.TruncateRunes(strings.TrimSpace(first.Content), s.titleMax())
	case errors.Is(err, repo.ErrNotFound):
		// no user turn yet, keep the default title
	default:
		return err
	}

	preview := sess.Preview
	last, err := repo.LastMessage(ctx, s.DB, id)
	switch {
	case err == nil:
		preview = utils.TruncateRunes(strings.TrimSpace(last.Content), s.previewMax())
	case errors.Is(err, repo.ErrNotFound):
	default:
		return err
	}

	if title == sess.Title && preview == sess.Preview {
		return nil
	}
	return repo.UpdateSessionMeta(ctx, s.DB, id, userID, title, preview)
}

// Remove deletes a session and its turns. When the removed session was the
// active one, the most recently created survivor becomes active; removing the
// last session immediately creates a fresh one (greeting included) so the
// user is never left without an active session. It returns the id of the
// session that is active afterwards.
func (s *SessionService) Remove(ctx context.Context, userID, id string) (string, error) {
	pref, err := repo.GetPreference(ctx, s.DB, userID)
	if err != nil {
		return "", err
	}

	if err := repo.DeleteSession(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrSessionNotFound
		}
		return "", err
	}

	remaining, err := repo.ListSessions(ctx, s.DB, userID)
	if err != nil {
		return "", err
	}
	if len(remaining) == 0 {
		fresh, err := s.Create(ctx, userID)
		if err != nil {
			return "", err
		}
		return fresh.ID, nil
	}
	if pref.ActiveSessionID != id {
		return pref.ActiveSessionID, nil
	}
	next := remaining[0].ID // newest-first ordering
	if err := repo.SetActiveSession(ctx, s.DB, userID, next); err != nil {
		return "", err
	}
	return next, nil
}

// Clear deletes every session the user owns and opens a fresh active one.
func (s *SessionService) Clear(ctx context.Context, userID string) (*domain.ChatSession, error) {
	if err := repo.DeleteAllSessions(ctx, s.DB, userID); err != nil {
		return nil, err
	}
	return s.Create(ctx, userID)
}
