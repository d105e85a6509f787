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

func newPrefRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("pref_repo_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.Preference{}, &domain.UserProfile{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGetPreference_MissingRowIsZeroedNotError(t *testing.T) {
	db := newPrefRepoDB(t)

	p, err := GetPreference(context.Background(), db, "fresh-user")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if p.UserID != "fresh-user" || p.ActiveSessionID != "" || p.GoToChat {
		t.Fatalf("expected zeroed record, got %+v", p)
	}
}

func TestSetActiveSession_InsertsThenUpdates(t *testing.T) {
	db := newPrefRepoDB(t)
	ctx := context.Background()

	if err := SetActiveSession(ctx, db, "u1", "s1"); err != nil {
		t.Fatalf("first SetActiveSession: %v", err)
	}
	if err := SetActiveSession(ctx, db, "u1", "s2"); err != nil {
		t.Fatalf("second SetActiveSession: %v", err)
	}

	p, err := GetPreference(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if p.ActiveSessionID != "s2" {
		t.Fatalf("ActiveSessionID = %q; want s2", p.ActiveSessionID)
	}

	var count int64
	if err := db.Model(&domain.Preference{}).Where("user_id = ?", "u1").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one upserted row, got %d", count)
	}
}

func TestUpsertPreference_KeepsFlagAndPointerTogether(t *testing.T) {
	db := newPrefRepoDB(t)
	ctx := context.Background()

	if err := UpsertPreference(ctx, db, &domain.Preference{UserID: "u1", ActiveSessionID: "s1", GoToChat: true}); err != nil {
		t.Fatalf("UpsertPreference: %v", err)
	}
	if err := SetActiveSession(ctx, db, "u1", "s9"); err != nil {
		t.Fatalf("SetActiveSession: %v", err)
	}

	p, err := GetPreference(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if !p.GoToChat || p.ActiveSessionID != "s9" {
		t.Fatalf("pointer update lost flag: %+v", p)
	}
}

func TestDeletePreference_Idempotent(t *testing.T) {
	db := newPrefRepoDB(t)
	ctx := context.Background()

	if err := DeletePreference(ctx, db, "nobody"); err != nil {
		t.Fatalf("delete of missing row should be a no-op: %v", err)
	}

	if err := SetActiveSession(ctx, db, "u1", "s1"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := DeletePreference(ctx, db, "u1"); err != nil {
		t.Fatalf("DeletePreference: %v", err)
	}
	if err := DeletePreference(ctx, db, "u1"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestProfileRepo_CreateGetDelete(t *testing.T) {
	db := newPrefRepoDB(t)
	ctx := context.Background()

	p := &domain.UserProfile{
		UserID: "u1", Name: "Maria", Age: 29, Gender: "female",
		HeightCM: 168, WeightKG: 62, Goal: "Build muscle", Country: "Greece",
	}
	if err := CreateProfile(ctx, db, p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if err := CreateProfile(ctx, db, &domain.UserProfile{
		UserID: "u1", Name: "Maria", Age: 29, Gender: "female",
		HeightCM: 168, WeightKG: 62, Goal: "x", Country: "y",
	}); err == nil {
		t.Fatal("expected unique-constraint error on duplicate profile")
	}

	got, err := GetProfile(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Name != "Maria" || got.HeightCM != 168 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	if err := DeleteProfile(ctx, db, "u1"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if err := DeleteProfile(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := GetProfile(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
