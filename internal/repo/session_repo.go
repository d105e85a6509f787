// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatSession
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a session is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateSession(ctx, db, userID, title) -> *domain.ChatSession, error
//     Inserts a new session row with UUID primary key and UTC timestamp.
//
//   - ListSessions(ctx, db, userID) -> []domain.ChatSession, error
//     Returns all sessions for a user, newest first.
//
//   - GetSession(ctx, db, id, userID) -> *domain.ChatSession, error
//     Fetches a single session by ID/userID, or ErrNotFound if missing.
//
//   - UpdateSessionMeta(ctx, db, id, userID, title, preview) -> error
//     Refreshes the derived title/preview of a session, enforcing ownership.
//     The creation timestamp is never touched. Returns ErrNotFound if the
//     session does not exist.
//
//   - DeleteSession(ctx, db, id, userID) -> error
//     Removes a session and its messages. Returns ErrNotFound when missing.
//
//   - DeleteAllSessions(ctx, db, userID) -> error
//     Removes every session (and all messages) owned by the user.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.SessionService) which enforces the registry rules: lazy
// creation, title/preview derivation, and active-session replacement.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateSession inserts a new ChatSession row owned by userID with the given
// title (an empty title falls back to the "New Chat" default). The session ID
// is a randomly generated UUID (string), and CreatedAt is set to UTC.
//
// On success, it returns the persisted session. On failure, it returns a DB error.
func CreateSession(ctx context.Context, db *gorm.DB, userID, title string) (*domain.ChatSession, error) {
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	s := &domain.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ListSessions returns all sessions belonging to userID, ordered by creation
// time descending (most recent first). It returns an empty slice if the user
// has no sessions. On DB error, it returns the error.
func ListSessions(ctx context.Context, db *gorm.DB, userID string) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// GetSession fetches a single session by its ID and owner (userID). If the
// record does not exist, it returns ErrNotFound. On other DB errors, the raw
// error is returned.
func GetSession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSessionMeta refreshes the derived title and preview of a session
// identified by id and owned by userID. CreatedAt is deliberately left alone;
// only UpdatedAt moves. If no rows are affected (session missing or not owned
// by userID), it returns ErrNotFound. On DB error, the raw error is returned.
func UpdateSessionMeta(ctx context.Context, db *gorm.DB, id, userID, title, preview string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"title": title, "preview": preview})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteSession removes the session and all its messages. The two deletes run
// in one transaction so the registry and the transcript can never diverge.
// Returns ErrNotFound when the session does not exist or is not owned by
// userID.
func DeleteSession(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.ChatSession{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("session_id = ?", id).Delete(&domain.ChatMessage{}).Error
	})
}

// DeleteAllSessions removes every session and every message owned by userID
// in one transaction.
func DeleteAllSessions(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&domain.ChatSession{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("session_id IN ?", ids).Delete(&domain.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&domain.ChatSession{}).Error
	})
}
