// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the UserProfile
// model.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving business rules (create-once, full reset) to the
// services package.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
)

// CreateProfile inserts the profile row for a user. The user id is the
// primary key, so inserting twice surfaces as a unique-constraint DB error;
// the service layer translates that into its own sentinel.
func CreateProfile(ctx context.Context, db *gorm.DB, p *domain.UserProfile) error {
	p.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(p).Error
}

// GetProfile fetches the profile owned by userID, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProfile removes the profile row. Returns ErrNotFound when the user
// has no profile.
func DeleteProfile(ctx context.Context, db *gorm.DB, userID string) error {
	res := db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.UserProfile{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
