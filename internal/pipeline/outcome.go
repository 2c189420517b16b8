// Package pipeline implements the shared request validation, rate limiting,
// and idempotent-submission flow behind the site's POST endpoints. Each
// endpoint adapter supplies a field contract, a rate window, and its side
// effects; the pipeline runs the checks in a fixed order and reports a single
// Outcome that the transport layer maps to an HTTP response.
//
// Control flow: Validate → RateLimit → DuplicateGuard → Effects → Outcome.
// An activity record is persisted if and only if all three checks passed.
package pipeline

import "net/http"

// Status enumerates the terminal states of one pipeline run.
type Status int

const (
	// StatusAccepted means all checks passed and every effect succeeded.
	StatusAccepted Status = iota
	// StatusRejectedValidation means the field contract was violated.
	StatusRejectedValidation
	// StatusRejectedRateLimited means the identity exceeded its rate window.
	StatusRejectedRateLimited
	// StatusRejectedDuplicate means the content repeats the previous submission.
	StatusRejectedDuplicate
	// StatusRejectedTooFast means the submission arrived under the minimum interval.
	StatusRejectedTooFast
	// StatusPartialFailure means a best-effort effect failed; the caller is
	// still told the submission succeeded.
	StatusPartialFailure
	// StatusFailed means a mandatory effect or an infrastructure lookup failed.
	StatusFailed
)

// Outcome is the result of running the pipeline on one request. It is
// constructed once per request, never persisted, and consumed only by the
// transport mapping.
type Outcome struct {
	Status Status

	// Field and Reason describe the first contract violation for
	// StatusRejectedValidation.
	Field  string
	Reason string

	// Payload holds the coerced request fields when the submission was
	// admitted (Accepted or PartialFailure).
	Payload Payload

	// EffectErrors carries per-effect diagnostics. Best-effort failures are
	// recorded here and nowhere else on the wire.
	EffectErrors []EffectError
}

// Admitted reports whether the submission was accepted from the caller's
// perspective (best-effort failures included).
func (o Outcome) Admitted() bool {
	return o.Status == StatusAccepted || o.Status == StatusPartialFailure
}

// Disposition is the deterministic transport-level mapping of an Outcome:
// an HTTP status plus a stable code and user-facing message. Internal detail
// (mandatory effect errors, lookup failures) never reaches the message.
type Disposition struct {
	HTTPStatus int
	Code       string
	Message    string
}

// Stable machine-readable codes carried in error envelopes.
const (
	CodeBadRequest  = "bad_request"
	CodeRateLimited = "rate_limited"
	CodeDuplicate   = "duplicate_content"
	CodeTooFast     = "too_fast"
	CodeInternal    = "internal_error"
)

// Disposition maps the outcome per the fixed table: Accepted and
// PartialFailure are success, contract violations are 400, policy rejections
// are 429 with their distinct user-facing messages, and failures are a
// generic 500.
func (o Outcome) Disposition() Disposition {
	switch o.Status {
	case StatusAccepted, StatusPartialFailure:
		return Disposition{HTTPStatus: http.StatusOK}
	case StatusRejectedValidation:
		msg := o.Reason
		if o.Field != "" {
			msg = o.Field + ": " + o.Reason
		}
		return Disposition{HTTPStatus: http.StatusBadRequest, Code: CodeBadRequest, Message: msg}
	case StatusRejectedRateLimited:
		return Disposition{
			HTTPStatus: http.StatusTooManyRequests,
			Code:       CodeRateLimited,
			Message:    "You're sending messages too quickly. Please wait a moment.",
		}
	case StatusRejectedDuplicate:
		return Disposition{
			HTTPStatus: http.StatusTooManyRequests,
			Code:       CodeDuplicate,
			Message:    "Please don't repeat the same message.",
		}
	case StatusRejectedTooFast:
		return Disposition{
			HTTPStatus: http.StatusTooManyRequests,
			Code:       CodeTooFast,
			Message:    "Whoa, slow down a bit!",
		}
	default:
		return Disposition{
			HTTPStatus: http.StatusInternalServerError,
			Code:       CodeInternal,
			Message:    "Internal Server Error",
		}
	}
}

// rejectedValidation builds the outcome for the first violated field.
func rejectedValidation(field, reason string) Outcome {
	return Outcome{Status: StatusRejectedValidation, Field: field, Reason: reason}
}
