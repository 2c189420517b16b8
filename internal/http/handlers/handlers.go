// Form and chat HTTP handlers.
//
// Handlers are transport-thin: they decode the JSON body, call application
// services, and translate pipeline outcomes into HTTP responses. All
// endpoint-specific policy (contracts, rate windows, side effects) lives in
// the services; everything here is envelope shaping, idempotency record
// keeping, and status mapping.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vallit/go-site-backend/internal/domain"
	"github.com/vallit/go-site-backend/internal/http/middleware"
	"github.com/vallit/go-site-backend/internal/pipeline"
	"github.com/vallit/go-site-backend/internal/repo"
)

//
// Service contracts (context-aware)
//

// ChatService defines the chat operations consumed by HTTP handlers.
// Implementations must be safe for concurrent use and honor the context.
type ChatService interface {
	// Submit runs a user message through the pipeline and returns the
	// assistant reply when admitted.
	Submit(ctx context.Context, body map[string]any) (string, pipeline.Outcome)
	// Log records one chat event without rate limiting.
	Log(ctx context.Context, body map[string]any) pipeline.Outcome
	// History returns a page of messages within a session and the total.
	History(ctx context.Context, sessionID string, page, pageSize int) ([]domain.ChatMessage, int64, error)
}

// BookingService defines the appointment submission operation.
type BookingService interface {
	Book(ctx context.Context, body map[string]any) (string, pipeline.Outcome)
}

// ContactService defines the contact form submission operation.
type ContactService interface {
	Submit(ctx context.Context, body map[string]any) pipeline.Outcome
}

// DataRequestService defines the GDPR request submission operation.
type DataRequestService interface {
	Submit(ctx context.Context, body map[string]any) (string, pipeline.Outcome)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic; the DB
// handle is only used for idempotency records and the health probe.
type Handlers struct {
	chatSvc    ChatService
	bookingSvc BookingService
	contactSvc ContactService
	dataSvc    DataRequestService

	db             *gorm.DB
	idempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(chatSvc ChatService, bookingSvc BookingService, contactSvc ContactService, dataSvc DataRequestService, db *gorm.DB, idempotencyTTL time.Duration) *Handlers {
	return &Handlers{
		chatSvc:        chatSvc,
		bookingSvc:     bookingSvc,
		contactSvc:     contactSvc,
		dataSvc:        dataSvc,
		db:             db,
		idempotencyTTL: idempotencyTTL,
	}
}

// bindBody decodes the request body into the loose field map the pipeline
// validates. A decode failure is answered directly with a 400.
func bindBody(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return nil, false
	}
	return body, true
}

// recordIdempotency stores a completed submission against the request's
// Idempotency-Key, when one was supplied. Best effort.
func (h *Handlers) recordIdempotency(c *gin.Context, recordID string) {
	key, ok := middleware.GetIdempotencyKey(c)
	if !ok || h.db == nil {
		return
	}
	ttl := h.idempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	identity := middleware.SubmitterIdentity(c)
	scope := c.FullPath()
	_, _ = repo.CreateIdempotency(c.Request.Context(), h.db, identity, scope, key, recordID, http.StatusOK, ttl)
}

// serveReplay answers a detected idempotent replay with the stored record,
// bypassing the pipeline entirely. Returns true when the replay was served.
func (h *Handlers) serveReplay(c *gin.Context) bool {
	if !middleware.IsReplay(c) || h.db == nil {
		return false
	}
	key, _ := middleware.GetIdempotencyKey(c)
	rec, err := repo.GetIdempotency(c.Request.Context(), h.db,
		middleware.SubmitterIdentity(c), c.FullPath(), key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	ok(c, http.StatusOK, gin.H{
		"status":    "ok",
		"replay":    true,
		"record_id": rec.RecordID,
	})
	return true
}
