// Package handlers defines HTTP-layer error codes used across all API
// endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them
// programmatically, the human-readable message is display material only.
// Generic codes mirror common HTTP status semantics; pipeline-specific codes
// (rate_limited, duplicate_content, too_fast) come from the submission
// pipeline's disposition table and are passed through unchanged.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
