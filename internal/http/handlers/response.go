// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all
// endpoints: the structured error envelope, the fail/ok helpers, and the
// translation of pipeline outcomes into HTTP responses. The goal is uniform,
// machine-friendly responses for both success and failure.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "rate_limited",
//	  "message": "You're sending messages too quickly. Please wait a moment."
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vallit/go-site-backend/internal/http/middleware"
	"github.com/vallit/go-site-backend/internal/pipeline"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
// RequestID correlates server logs with client-side errors; Code is a stable
// machine-readable string (see errors.go); Message is safe to show to users.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail aborts the request with a structured error. Server errors (>=500) are
// logged with the request-scoped logger; the response body stays generic.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a JSON success response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// finishSubmission records the outcome metric and, when the submission was
// not admitted, writes the mapped error response. It returns true when the
// caller should go on to write the success body.
func finishSubmission(c *gin.Context, endpoint string, out pipeline.Outcome) bool {
	d := out.Disposition()

	code := d.Code
	if code == "" {
		code = "ok"
	}
	middleware.ObserveSubmission(endpoint, code)

	if out.Admitted() {
		// Best-effort failures surface in logs only, never on the wire.
		if out.Status == pipeline.StatusPartialFailure {
			lg := middleware.LoggerFrom(c)
			for _, ee := range out.EffectErrors {
				lg.Warn().Str("effect", ee.Name).Err(ee.Err).Msg("best-effort effect failed")
			}
		}
		return true
	}

	fail(c, d.HTTPStatus, d.Code, d.Message)
	return false
}
