// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatMessage
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
)

// CreateMessage inserts a new message row.
func CreateMessage(db *gorm.DB, sessionID, role, content string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
func ListMessages(db *gorm.DB, sessionID string, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	q := db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FirstUserMessage returns the oldest user-role message of a session, or
// ErrNotFound when the session has no user turns yet. The session registry
// uses it to derive titles.
func FirstUserMessage(ctx context.Context, db *gorm.DB, sessionID string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	err := db.WithContext(ctx).
		Where("session_id = ? AND role = ?", sessionID, domain.RoleUser).
		Order("created_at ASC, id ASC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LastMessage returns the newest message of a session, or ErrNotFound when
// the session is empty. The session registry uses it to derive previews.
func LastMessage(ctx context.Context, db *gorm.DB, sessionID string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
