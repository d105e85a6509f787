package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fitbuddy/go-coach-backend/internal/domain"
)

func newMsgRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("message_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.ChatSession{}, &domain.ChatMessage{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedTurn(t *testing.T, db *gorm.DB, sessionID, role, content string, at time.Time) *domain.ChatMessage {
	t.Helper()
	m := &domain.ChatMessage{
		ID:        fmt.Sprintf("m-%s-%d", role, at.UnixNano()),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return m
}

func TestListMessages_DeterministicOrder(t *testing.T) {
	db := newMsgRepoDB(t)
	now := time.Now().UTC()

	// Inserted out of order on purpose.
	seedTurn(t, db, "s1", domain.RoleAssistant, "second", now.Add(time.Second))
	seedTurn(t, db, "s1", domain.RoleAssistant, "greeting", now.Add(-time.Minute))
	seedTurn(t, db, "s1", domain.RoleUser, "first", now)

	got, err := ListMessages(db, "s1", 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d; want 3", len(got))
	}
	if got[0].Content != "greeting" || got[1].Content != "first" || got[2].Content != "second" {
		t.Fatalf("wrong order: %q %q %q", got[0].Content, got[1].Content, got[2].Content)
	}
}

func TestFirstUserMessage_SkipsAssistantTurns(t *testing.T) {
	db := newMsgRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedTurn(t, db, "s1", domain.RoleAssistant, "greeting", now.Add(-time.Minute))
	seedTurn(t, db, "s1", domain.RoleUser, "actual prompt", now)
	seedTurn(t, db, "s1", domain.RoleUser, "later prompt", now.Add(time.Second))

	m, err := FirstUserMessage(ctx, db, "s1")
	if err != nil {
		t.Fatalf("FirstUserMessage: %v", err)
	}
	if m.Content != "actual prompt" {
		t.Fatalf("Content = %q; want the oldest user turn", m.Content)
	}
}

func TestFirstUserMessage_NoneYet(t *testing.T) {
	db := newMsgRepoDB(t)
	ctx := context.Background()

	seedTurn(t, db, "s1", domain.RoleAssistant, "greeting", time.Now().UTC())

	if _, err := FirstUserMessage(ctx, db, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLastMessage_NewestWins(t *testing.T) {
	db := newMsgRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedTurn(t, db, "s1", domain.RoleUser, "question", now)
	seedTurn(t, db, "s1", domain.RoleAssistant, "answer", now.Add(time.Second))

	m, err := LastMessage(ctx, db, "s1")
	if err != nil {
		t.Fatalf("LastMessage: %v", err)
	}
	if m.Content != "answer" {
		t.Fatalf("Content = %q; want newest turn", m.Content)
	}
}

func TestListMessages_SkipsSoftDeleted(t *testing.T) {
	db := newMsgRepoDB(t)
	now := time.Now().UTC()

	m := seedTurn(t, db, "s1", domain.RoleUser, "gone soon", now)
	seedTurn(t, db, "s1", domain.RoleAssistant, "stays", now.Add(time.Second))

	if err := db.Delete(m).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	msgs, err := ListMessages(db, "s1", 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "stays" {
		t.Fatalf("soft-deleted turn still listed: %+v", msgs)
	}
}
