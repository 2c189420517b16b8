// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatMessage
// model, including the window-scoped lookups consumed by the submission
// pipeline's rate limiter and duplicate guard.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vallit/go-site-backend/internal/domain"
)

// CreateMessage inserts a new message row.
func CreateMessage(ctx context.Context, db *gorm.DB, sessionID, role, content, metadata string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// CountMessagesSince uses a raw COUNT so a missing table surfaces as an error
// rather than a silent zero. The count is scoped to one role so assistant
// replies never count toward the visitor's quota.
func CountMessagesSince(ctx context.Context, db *gorm.DB, sessionID, role string, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM chat_messages WHERE session_id = ? AND role = ? AND created_at >= ? AND deleted_at IS NULL",
			sessionID, role, since).
		Scan(&total).Error
	return total, err
}

// LatestMessage returns the most recent message for a session/role pair, or
// nil when the session has no such messages.
func LatestMessage(ctx context.Context, db *gorm.DB, sessionID, role string) (*domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("session_id = ? AND role = ?", sessionID, role).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// CountMessages returns the total message count for a session.
func CountMessages(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM chat_messages WHERE session_id = ? AND deleted_at IS NULL", sessionID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, sessionID string, offset, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
