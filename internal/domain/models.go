// Package domain defines the persistence models for user profiles, chat
// sessions, messages, and preferences. These types are mapped with GORM and
// form the core data layer of the coaching application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Message roles. Assistant replies and user prompts are the only roles that
// appear in a session transcript; the persona instruction is never persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultSessionTitle is the title a session carries until its first user
// message arrives.
const DefaultSessionTitle = "New Chat"

// UserProfile holds the data collected at onboarding. A user has at most one
// profile; it is created once and never updated, only deleted as part of a
// full reset.
//
// Fields:
//   - UserID: identifier of the owner; primary key (one profile per user).
//   - Name / Age / Gender: basic demographics used by the persona instruction.
//   - HeightCM / WeightKG: body metrics used by the dashboard calculators.
//   - Goal: free-text goal chosen at onboarding (e.g. "Lose weight").
//   - Country: used to localize coaching suggestions.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type UserProfile struct {
	UserID    string    `json:"user_id"   gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(255);not null"`
	Age       int       `json:"age"       gorm:"not null;check:age > 0"`
	Gender    string    `json:"gender"    gorm:"type:varchar(16);not null"`
	HeightCM  float64   `json:"height_cm" gorm:"not null;check:height_cm > 0"`
	WeightKG  float64   `json:"weight_kg" gorm:"not null;check:weight_kg > 0"`
	Goal      string    `json:"goal"      gorm:"type:varchar(255);not null"`
	Country   string    `json:"country"   gorm:"type:varchar(128);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string { return "profiles" }

// ChatSession represents one independent conversation thread owned by a user.
// Title and Preview are denormalized from the session's messages: the title is
// derived from the first user message and the preview from the most recent
// message, so the session list can render without loading transcripts.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the owner; indexed for efficient retrieval.
//   - Title: derived title ("New Chat" until the first user message arrives).
//   - Preview: truncated content of the most recent message.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM. CreatedAt never
//     changes after the row is first inserted; metadata refreshes only touch
//     Title, Preview, and UpdatedAt.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type ChatSession struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_sessions"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;default:'New Chat'"`
	Preview   string         `json:"preview"    gorm:"type:varchar(255);not null;default:''"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "sessions" }

// ChatMessage represents a single turn within a session, authored either by
// the "user" or the "assistant". Message content is immutable once persisted;
// in-flight assistant turns live only in the chat controller until the remote
// response terminates.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SessionID: foreign key to the owning session (indexed).
//   - Role: "user" or "assistant" (enforced by DB constraint).
//   - Content: full text content of the turn.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
//   - Session: FK association, ensures cascade delete/update.
type ChatMessage struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string         `json:"session_id" gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	Role      string         `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string         `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_session_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Session is the parent conversation. Messages are cascade-deleted
	// if their session is removed.
	Session ChatSession `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "messages" }

// Preference stores per-user application state that must survive reloads:
// which session is active and whether the app should land directly on the
// chat view. One row per user.
//
// Fields:
//   - UserID: identifier of the owner; primary key.
//   - ActiveSessionID: the session currently shown in the chat view. Empty
//     until the first session is created.
//   - GoToChat: land on the chat view instead of the dashboard.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Preference struct {
	UserID          string    `json:"user_id"           gorm:"type:varchar(64);primaryKey"`
	ActiveSessionID string    `json:"active_session_id" gorm:"type:char(36);not null;default:''"`
	GoToChat        bool      `json:"go_to_chat"        gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for Preference.
func (Preference) TableName() string { return "preferences" }
