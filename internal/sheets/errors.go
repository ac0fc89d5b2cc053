// Package sheets implements the resilient HTTP client for the Apps Script
// spreadsheet backend. This file centralizes the fatal error taxonomy so that
// callers can distinguish the three conditions that must surface to the user
// from the transient conditions the client absorbs by retrying.
//
// Taxonomy:
//   - ErrEndpointNotFound: the configured web-app URL does not resolve
//     (HTTP 404). Points at a configuration problem, never retried.
//   - ErrPermissionDenied: HTTP 401/403, or an HTML page matching the
//     Google permission-denial pattern. Requires redeploying the script
//     with "Anyone" access, never retried.
//   - ErrBackend: the script answered with a well-formed {error: …} body,
//     e.g. an unknown action. Semantically invalid request, never retried.
//
// Everything else (5xx, 429, quota HTML, partial JSON, transport errors) is
// transient and never crosses the client boundary.
package sheets

import "errors"

var (
	// ErrEndpointNotFound indicates the endpoint URL is wrong or the script
	// deployment was removed (HTTP 404).
	ErrEndpointNotFound = errors.New("sheets endpoint not found (check the configured URL)")

	// ErrPermissionDenied indicates the script rejected the caller
	// (HTTP 401/403 or a Google permission page).
	ErrPermissionDenied = errors.New("sheets access denied (redeploy the script with public access)")

	// ErrBackend carries a semantic error reported by the script itself.
	ErrBackend = errors.New("sheets backend error")
)

// IsFatal reports whether err belongs to the non-retryable taxonomy. The
// retry loop short-circuits on fatal errors and on context cancellation;
// everything else is treated as transient.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEndpointNotFound) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrBackend)
}
