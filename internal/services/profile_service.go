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

// ProfileInput carries the onboarding form fields.
type ProfileInput struct {
	Name     string
	Age      int
	Gender   string
	HeightCM float64
	WeightKG float64
	Goal     string
	Country  string
}

// ProfileService handles onboarding: one immutable profile per user, created
// exactly once and removed only by a full reset that also wipes every session
// and preference the user owns.
type ProfileService struct {
	DB *gorm.DB
}

func validGender(g string) bool {
	switch g {
	case "male", "female", "other":
		return true
	}
	return false
}

// Create persists the onboarding profile. It fails with ErrProfileExists if
// the user already onboarded and ErrInvalidProfile on bad input.
func (s *ProfileService) Create(ctx context.Context, userID string, in ProfileInput) (*domain.UserProfile, error) {
	in.Name = utils.TitleCase(strings.TrimSpace(in.Name))
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	in.Goal = strings.TrimSpace(in.Goal)
	in.Country = strings.TrimSpace(in.Country)
	if in.Name == "" || in.Age <= 0 || in.HeightCM <= 0 || in.WeightKG <= 0 || !validGender(in.Gender) {
		return nil, ErrInvalidProfile
	}

	if _, err := repo.GetProfile(ctx, s.DB, userID); err == nil {
		return nil, ErrProfileExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	p := &domain.UserProfile{
		UserID:   userID,
		Name:     in.Name,
		Age:      in.Age,
		Gender:   in.Gender,
		HeightCM: in.HeightCM,
		WeightKG: in.WeightKG,
		Goal:     in.Goal,
		Country:  in.Country,
	}
	if err := repo.CreateProfile(ctx, s.DB, p); err != nil {
		// lost the race with a concurrent onboarding request
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, ErrProfileExists
		}
		return nil, err
	}
	return p, nil
}

// Get returns the user's profile or ErrProfileNotFound.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// Reset wipes everything the user owns in one transaction: sessions with
// their messages, the preference row, idempotency records, and finally the
// profile itself. After a reset the user is back to the pre-onboarding state.
func (s *ProfileService) Reset(ctx context.Context, userID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.DeleteAllSessions(ctx, tx, userID); err != nil {
			return err
		}
		if err := repo.DeletePreference(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		if err := repo.DeleteProfile(ctx, tx, userID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		return nil
	})
}
