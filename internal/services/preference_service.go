package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
	"github.com/fitbuddy/go-coach-backend/internal/repo"
)

// PreferenceService exposes the small per-user settings row: the
// go-to-chat flag (land on the chat view instead of the dashboard) and the
// active-session pointer that SessionService maintains.
type PreferenceService struct {
	DB *gorm.DB
}

// Get returns the user's preference row; a user who never saved one gets the
// zero-valued defaults rather than an error.
func (s *PreferenceService) Get(ctx context.Context, userID string) (*domain.Preference, error) {
	return repo.GetPreference(ctx, s.DB, userID)
}

// SetGoToChat toggles whether the app opens directly on the chat view. The
// active-session pointer is preserved.
func (s *PreferenceService) SetGoToChat(ctx context.Context, userID string, goToChat bool) (*domain.Preference, error) {
	cur, err := repo.GetPreference(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	cur.UserID = userID
	cur.GoToChat = goToChat
	if err := repo.UpsertPreference(ctx, s.DB, cur); err != nil {
		return nil, err
	}
	return cur, nil
}
