// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes give the
// mobile client a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, not_found) mirror common HTTP status
//     semantics to aid interoperability.
//   - Upstream codes (endpoint_not_configured, permission_denied, backend_error)
//     surface fatal spreadsheet failures; they always ride on a 502 so the
//     client can distinguish "fix your endpoint" from "try again later".
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "endpoint_not_configured",
//	  "message": "spreadsheet endpoint not found"
//	}
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Upstream spreadsheet failures (always 502):
	ErrCodeEndpointNotConfigured = "endpoint_not_configured"
	ErrCodePermissionDenied      = "permission_denied"
	ErrCodeBackend               = "backend_error"

	// Operation outcomes:
	ErrCodeFetchFailed      = "fetch_failed"
	ErrCodeSaveFailed       = "save_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
