// Package services implements the application layer for the site backend:
// each form and chat endpoint gets a small service that shapes a pipeline
// submission (field contract, rate window, side effects) and interprets the
// outcome. This file centralizes common service-level error values so they
// can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrSessionNotFound indicates that the requested chat session does not
	// exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoReply is returned when the completion provider produced no usable
	// reply and no fallback was configured.
	ErrNoReply = errors.New("no reply generated")
)
