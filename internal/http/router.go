// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, logging/redaction, panic recovery, body limits,
// metrics, idempotency, rate limiting, CORS, and security headers.
//
// Middleware ordering is deliberate: observability first, then protection
// layers, with the idempotency validator ahead of the rate limiter so
// replays of completed submissions bypass limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/vallit/go-site-backend/internal/completion"
	"github.com/vallit/go-site-backend/internal/config"
	"github.com/vallit/go-site-backend/internal/http/handlers"
	"github.com/vallit/go-site-backend/internal/http/middleware"
	"github.com/vallit/go-site-backend/internal/notify"
	"github.com/vallit/go-site-backend/internal/pipeline"
	"github.com/vallit/go-site-backend/internal/repo"
	"github.com/vallit/go-site-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. rdb is optional; when present, edge limiter decisions are mirrored
// into Redis.
//
// Middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip (skipping /metrics)
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Edge rate limiter (per session/IP, bypass on replay)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, rdb *redis.Client, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-User-Email"},
	}))
	r.Use(middleware.Recovery())
	r.Use(middleware.MaxBodyBytes(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, identity, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, identity, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	var recorder middleware.DecisionRecorder
	if rdb != nil {
		recorder = middleware.NewRedisDecisions(rdb, log.Logger)
	}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionOrIP(), recorder)
	r.Use(rl.Handler())

	registerCORS(r, cfg)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Dependency injection: one shared pipeline, per-endpoint services.
	pl := pipeline.New(&repo.ActivityStore{DB: db}, cfg.Submission.EffectWait, log.Logger)

	var notifier notify.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTP(cfg.SMTP)
	}
	var completer completion.Completer
	if cfg.Completion.APIKey != "" {
		completer = completion.New(cfg.Completion)
	}

	chatSvc := &services.ChatService{
		DB:           db,
		Pipeline:     pl,
		Completer:    completer,
		SystemPrompt: cfg.Completion.SystemPrompt,
		Limits:       cfg.Submission,
		Logger:       log.Logger,
	}
	bookingSvc := &services.BookingService{
		DB: db, Pipeline: pl,
		Notifier: notifier, AdminEmail: cfg.SMTP.AdminEmail,
		ZoomLink: cfg.ZoomLink,
		Logger:   log.Logger,
	}
	contactSvc := &services.ContactService{
		DB: db, Pipeline: pl,
		Notifier: notifier, AdminEmail: cfg.SMTP.AdminEmail,
		Logger: log.Logger,
	}
	dataSvc := &services.DataRequestService{
		DB: db, Pipeline: pl,
		Notifier: notifier, AdminEmail: cfg.SMTP.AdminEmail,
		Logger: log.Logger,
	}

	h := handlers.New(chatSvc, bookingSvc, contactSvc, dataSvc, db, cfg.IdempotencyTTL)

	r.GET("/health", h.Health)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/book-appointment", h.BookAppointment)
		api.POST("/contact", h.SubmitContact)

		api.POST("/chat/message", h.SubmitChatMessage)
		api.POST("/chat/log", h.LogChatMessage)
		api.GET("/chat/sessions/:id/messages", h.ChatHistory)

		api.POST("/user/data-request", h.SubmitDataRequest)
		api.GET("/user/me", h.Me)
	}
}

// registerCORS applies the CORS posture: allow-all when no origins are
// configured, an explicit allowlist otherwise.
func registerCORS(r *gin.Engine, cfg config.Config) {
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		"X-Session-ID", "X-User-Email", middleware.HeaderIdempotencyKey,
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header, which
		// keeps simple health checks and tests happy.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
	for _, o := range cfg.CORS.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     allowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
