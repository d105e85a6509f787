// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Preference
// model (active session pointer and landing-view flag).
//
// Preferences are an upsert-style single row per user: reads return a zero
// record rather than an error when the user has never saved one, because a
// missing preference row is a valid state (fresh user).
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
)

// GetPreference returns the user's preference row, or a zeroed record when
// none exists yet. On DB error, it returns the error.
func GetPreference(ctx context.Context, db *gorm.DB, userID string) (*domain.Preference, error) {
	var p domain.Preference
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.Preference{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPreference inserts or fully replaces the user's preference row.
func UpsertPreference(ctx context.Context, db *gorm.DB, p *domain.Preference) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active_session_id", "go_to_chat", "updated_at"}),
		}).
		Create(p).Error
}

// SetActiveSession updates only the active-session pointer, inserting the row
// when the user has no preferences yet.
func SetActiveSession(ctx context.Context, db *gorm.DB, userID, sessionID string) error {
	p, err := GetPreference(ctx, db, userID)
	if err != nil {
		return err
	}
	p.ActiveSessionID = sessionID
	return UpsertPreference(ctx, db, p)
}

// DeletePreference removes the user's preference row. Missing rows are not an
// error; reset must be idempotent.
func DeletePreference(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Preference{}).Error
}
