// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// Kind classifies a generation failure for presentation and handling.
type Kind int

const (
	// KindValidation indicates the request was rejected before any network
	// call (empty input, missing model).
	KindValidation Kind = iota

	// KindAuth indicates a rejected or missing credential (401, 403).
	KindAuth

	// KindRateOrQuota indicates rate limiting or exhausted credits (402, 429).
	KindRateOrQuota

	// KindNotFound indicates the requested model does not exist (404).
	KindNotFound

	// KindTransport indicates a network-level failure: refused connection,
	// reset mid-stream, DNS failure.
	KindTransport

	// KindAborted indicates the user cancelled the generation.
	KindAborted

	// KindUnexpected covers anything else, including 5xx responses.
	KindUnexpected
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindRateOrQuota:
		return "rate_or_quota"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	case KindAborted:
		return "aborted"
	default:
		return "unexpected"
	}
}

// Sentinel errors for errors.Is classification.
var (
	// ErrInvalidRequest indicates request validation failed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests or insufficient credits.
	ErrRateLimited = errors.New("rate limited or out of quota")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrAborted indicates the user cancelled the generation.
	ErrAborted = errors.New("generation aborted")

	// ErrNoAPIKey indicates the hosted backend has no credential configured.
	ErrNoAPIKey = errors.New("API key not configured")
)

// sentinelFor maps a kind to its errors.Is sentinel, if any.
func sentinelFor(k Kind) error {
	switch k {
	case KindValidation:
		return ErrInvalidRequest
	case KindAuth:
		return ErrAuthFailed
	case KindRateOrQuota:
		return ErrRateLimited
	case KindNotFound:
		return ErrModelNotFound
	case KindAborted:
		return ErrAborted
	default:
		return nil
	}
}

// Error is a classified generation error. Message preserves the backend's
// own error text verbatim when one was returned.
type Error struct {
	Kind    Kind
	Backend string
	Status  int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Backend != "" {
		if e.Status != 0 {
			return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Backend, e.Kind, e.Status, msg)
		}
		return fmt.Sprintf("%s: %s: %s", e.Backend, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows classified errors to match their kind's sentinel.
func (e *Error) Is(target error) bool {
	if s := sentinelFor(e.Kind); s != nil {
		return target == s
	}
	return false
}

// KindOf extracts the Kind from any error produced by this package.
// Unclassified errors map to KindUnexpected.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return KindValidation
	case errors.Is(err, ErrAuthFailed), errors.Is(err, ErrNoAPIKey):
		return KindAuth
	case errors.Is(err, ErrRateLimited):
		return KindRateOrQuota
	case errors.Is(err, ErrModelNotFound):
		return KindNotFound
	case errors.Is(err, ErrAborted):
		return KindAborted
	}
	return KindUnexpected
}

// apiErrorEnvelope is the hosted API error shape: {"error":{"code","message"}}.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// localErrorEnvelope is the local server error shape: {"error":"message"}.
type localErrorEnvelope struct {
	Error string `json:"error"`
}
