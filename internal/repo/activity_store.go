// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file adapts the chat_messages table to the submission
// pipeline's ActivityStore interface.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vallit/go-site-backend/internal/pipeline"
)

// ActivityStore exposes persisted chat messages as the pipeline's activity
// records. It performs plain reads with no client-side locking; the accepted
// same-identity race is documented on the pipeline.
type ActivityStore struct {
	DB *gorm.DB
}

// CountSince implements pipeline.ActivityStore.
func (s *ActivityStore) CountSince(ctx context.Context, identity, role string, since time.Time) (int64, error) {
	return CountMessagesSince(ctx, s.DB, identity, role, since)
}

// Latest implements pipeline.ActivityStore.
func (s *ActivityStore) Latest(ctx context.Context, identity, role string) (*pipeline.Activity, error) {
	m, err := LatestMessage(ctx, s.DB, identity, role)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return &pipeline.Activity{Content: m.Content, CreatedAt: m.CreatedAt}, nil
}
