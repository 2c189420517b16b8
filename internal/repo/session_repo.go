// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatSession
// model. Session existence is established with an upsert keyed on the
// caller-supplied session identifier, so two concurrent submissions for the
// same identity converge on one row instead of racing to insert.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vallit/go-site-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
//
// It aliases gorm.ErrRecordNotFound so callers can use errors.Is without
// importing GORM.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertSession ensures a session row exists for sessionID, updating
// user_email (when provided) and updated_at on conflict.
func UpsertSession(ctx context.Context, db *gorm.DB, sessionID, userEmail string) error {
	now := time.Now().UTC()
	s := &domain.ChatSession{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserEmail: userEmail,
		CreatedAt: now,
		UpdatedAt: now,
	}
	assign := map[string]any{"updated_at": now}
	if userEmail != "" {
		assign["user_email"] = userEmail
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.Assignments(assign),
		}).
		Create(s).Error
}

// GetSession fetches a session by its caller-supplied identifier, or
// ErrNotFound if missing.
func GetSession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
