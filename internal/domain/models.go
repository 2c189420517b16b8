// Package domain defines the persistence models for chat sessions and
// messages, appointment bookings, contact entries, and GDPR data requests.
// These types are mapped with GORM and form the core data layer of the
// site backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Submission classification roles. Only RoleUser messages count toward rate
// limiting, so assistant replies never throttle the visitor.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Data request types accepted by the GDPR endpoint.
const (
	RequestTypeAccess = "ACCESS"
	RequestTypeDelete = "DELETE"
)

// ChatSession represents one visitor conversation with the site assistant.
// Sessions are keyed by a caller-supplied identifier; existence is enforced
// with an upsert-on-conflict write, so concurrent submissions for the same
// session never produce duplicate rows.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SessionID: caller-supplied identity; unique, indexed.
//   - UserEmail: optional, filled in when the visitor identifies themselves.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type ChatSession struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string    `json:"session_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_session_id"`
	UserEmail string    `json:"user_email,omitempty" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "chat_sessions" }

// ChatMessage is the activity record of one accepted submission (or one
// assistant reply) within a session. Rows are append-only: the rate limiter
// and duplicate guard read them, nothing mutates them.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SessionID: the owning session identity (indexed with CreatedAt).
//   - Role: "user" or "assistant" (enforced by DB constraint).
//   - Content: full text content of the message.
//   - Metadata: opaque JSON blob supplied by the caller (logging endpoint).
//   - CreatedAt: insertion timestamp, part of the window-scan index.
type ChatMessage struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string         `json:"session_id" gorm:"type:varchar(64);not null;index:idx_session_msgs,priority:1"`
	Role      string         `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string         `json:"content"    gorm:"type:text;not null"`
	Metadata  string         `json:"metadata,omitempty" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_session_msgs,priority:2"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// Appointment represents a consultation booking made through the site.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Name / Email: booking contact, both required at the API boundary.
//   - Company / Topic: optional context supplied by the visitor.
//   - Date: scheduled start, stored in UTC.
type Appointment struct {
	ID        string         `json:"id"      gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"    gorm:"type:varchar(255);not null"`
	Email     string         `json:"email"   gorm:"type:varchar(255);not null;index"`
	Company   string         `json:"company,omitempty" gorm:"type:varchar(255)"`
	Topic     string         `json:"topic,omitempty"   gorm:"type:varchar(255)"`
	Date      time.Time      `json:"date"    gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"       gorm:"index"`
}

// TableName returns the database table name for Appointment.
func (Appointment) TableName() string { return "appointments" }

// ContactEntry represents a contact form submission (a sales lead).
type ContactEntry struct {
	ID        string         `json:"id"       gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"     gorm:"type:varchar(255);not null"`
	Company   string         `json:"company"  gorm:"type:varchar(255);not null"`
	Email     string         `json:"email"    gorm:"type:varchar(255);not null;index"`
	TeamSize  string         `json:"team_size,omitempty" gorm:"type:varchar(64)"`
	Interest  string         `json:"interest,omitempty"  gorm:"type:varchar(255)"`
	Message   string         `json:"message,omitempty"   gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"        gorm:"index"`
}

// TableName returns the database table name for ContactEntry.
func (ContactEntry) TableName() string { return "contact_entries" }

// DataRequest represents a GDPR access or deletion request. The row is the
// source of truth for the 30-day processing obligation; mails about it are
// advisory. Status moves from PENDING through manual processing.
type DataRequest struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	Email       string         `json:"email"        gorm:"type:varchar(255);not null;index"`
	RequestType string         `json:"request_type" gorm:"type:varchar(16);not null;check:request_type IN ('ACCESS','DELETE')"`
	Status      string         `json:"status"       gorm:"type:varchar(16);not null;default:'PENDING'"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for DataRequest.
func (DataRequest) TableName() string { return "data_requests" }
