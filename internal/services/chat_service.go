// Package services – ChatService
//
// This file implements ChatService, the application-level component that owns
// the chat widget's message flow. An inbound user message runs through the
// shared submission pipeline (contract validation, trailing-window rate
// limit, duplicate/speed guards, persistence), then an assistant reply is
// generated by the configured completion provider and stored alongside it.
// Provider failures never surface to the visitor: the reply degrades to a
// canned fallback and the failure is logged.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// session identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vallit/go-site-backend/internal/completion"
	"github.com/vallit/go-site-backend/internal/config"
	"github.com/vallit/go-site-backend/internal/domain"
	"github.com/vallit/go-site-backend/internal/pipeline"
	"github.com/vallit/go-site-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FallbackReply is returned to the visitor when the completion provider
// fails or produces nothing usable.
const FallbackReply = "I'm sorry, I couldn't generate a response."

// ChatService coordinates chat message submission and assistant replies.
type ChatService struct {
	DB        *gorm.DB
	Pipeline  *pipeline.Pipeline
	Completer completion.Completer

	// SystemPrompt steers the assistant persona.
	SystemPrompt string

	// Limits holds the window/speed guards applied to user submissions.
	Limits config.SubmissionConfig

	Logger zerolog.Logger
}

var chatContract = pipeline.Contract{
	{Name: "message", Required: true, Kind: pipeline.KindString},
	{Name: "session_id", Required: true, Kind: pipeline.KindString},
	{Name: "user_email", Kind: pipeline.KindEmail},
}

var logContract = pipeline.Contract{
	{Name: "session_id", Required: true, Kind: pipeline.KindString},
	{Name: "role", Required: true, Kind: pipeline.KindEnum, Allowed: []string{domain.RoleUser, domain.RoleAssistant}},
	{Name: "content", Required: true, Kind: pipeline.KindString},
	{Name: "user_email", Kind: pipeline.KindEmail},
}

// Submit runs one user message through the pipeline and, when admitted,
// generates and persists the assistant reply. The returned reply is empty
// unless the outcome is admitted.
func (s *ChatService) Submit(ctx context.Context, body map[string]any) (string, pipeline.Outcome) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Submit")
	defer span.End()

	out := s.Pipeline.Run(ctx, pipeline.Submission{
		Contract:      chatContract,
		Body:          body,
		IdentityField: "session_id",
		ContentField:  "message",
		Role:          domain.RoleUser,
		Window:        pipeline.RateWindow{Window: s.Limits.Window, MaxCount: s.Limits.MaxCount},
		MinInterval:   s.Limits.MinInterval,
		Effects:       s.chatEffects,
	})
	if !out.Admitted() {
		return "", out
	}

	sessionID := out.Payload.String("session_id")
	message := out.Payload.String("message")
	span.SetAttributes(attribute.String("session.id", sessionID))

	reply := s.generateReply(ctx, message)

	// The assistant row is best-effort: the visitor already has the reply,
	// so a persistence failure only loses history.
	if _, err := repo.CreateMessage(ctx, s.DB, sessionID, domain.RoleAssistant, reply, ""); err != nil {
		s.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("assistant message not persisted")
	}
	return reply, out
}

// chatEffects persists the session row and the user message. Both are
// mandatory: without the stored message the window guard has nothing to
// count on the next request.
func (s *ChatService) chatEffects(p pipeline.Payload) (mandatory, bestEffort []pipeline.Effect) {
	sessionID := p.String("session_id")
	userEmail := p.String("user_email")
	message := p.String("message")
	mandatory = []pipeline.Effect{{
		Name: "persist-user-message",
		Run: func(ctx context.Context) error {
			if err := repo.UpsertSession(ctx, s.DB, sessionID, userEmail); err != nil {
				return err
			}
			_, err := repo.CreateMessage(ctx, s.DB, sessionID, domain.RoleUser, message, "")
			return err
		},
	}}
	return mandatory, nil
}

func (s *ChatService) generateReply(ctx context.Context, message string) string {
	if s.Completer == nil {
		return FallbackReply
	}
	reply, err := s.Completer.Complete(ctx, s.SystemPrompt, message)
	if err != nil || reply == "" {
		s.Logger.Error().Err(err).Msg("completion failed; using fallback reply")
		return FallbackReply
	}
	return reply
}

// Log records an arbitrary chat event (either side of the conversation)
// without rate limiting. The message insert is mandatory; the session upsert
// is best-effort so a contended session row cannot fail the log write.
func (s *ChatService) Log(ctx context.Context, body map[string]any) pipeline.Outcome {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Log")
	defer span.End()

	metadata := rawMetadata(body)

	return s.Pipeline.Run(ctx, pipeline.Submission{
		Contract: logContract,
		Body:     body,
		Effects: func(p pipeline.Payload) (mandatory, bestEffort []pipeline.Effect) {
			sessionID := p.String("session_id")
			role := p.String("role")
			content := p.String("content")
			userEmail := p.String("user_email")
			mandatory = []pipeline.Effect{{
				Name: "persist-log-message",
				Run: func(ctx context.Context) error {
					_, err := repo.CreateMessage(ctx, s.DB, sessionID, role, content, metadata)
					return err
				},
			}}
			bestEffort = []pipeline.Effect{{
				Name: "upsert-session",
				Run: func(ctx context.Context) error {
					return repo.UpsertSession(ctx, s.DB, sessionID, userEmail)
				},
			}}
			return mandatory, bestEffort
		},
	})
}

// rawMetadata re-serializes the free-form metadata value, if any. The field
// is carried verbatim; it is not part of the validation contract.
func rawMetadata(body map[string]any) string {
	v, ok := body["metadata"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// History returns a page of messages within a session and the total count.
func (s *ChatService) History(ctx context.Context, sessionID string, page, pageSize int) ([]domain.ChatMessage, int64, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if _, err := repo.GetSession(ctx, s.DB, sessionID); err != nil {
		if err == repo.ErrNotFound {
			return nil, 0, ErrSessionNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, sessionID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
