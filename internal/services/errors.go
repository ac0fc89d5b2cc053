package services

import "errors"

// Validation errors returned by the sync service before any remote call is
// attempted. Handlers map these onto 400 responses.
var (
	// ErrEmptyBarcode indicates a write operation without a barcode.
	ErrEmptyBarcode = errors.New("barcode is empty")

	// ErrReasonRequired indicates a damage submission with no reason text.
	ErrReasonRequired = errors.New("damage reason is required")

	// ErrInvalidURL indicates an endpoint override that is not an absolute URL.
	ErrInvalidURL = errors.New("endpoint must be an absolute http(s) URL")

	// ErrEmptyInspector indicates a roster entry without an identifier.
	ErrEmptyInspector = errors.New("inspector id is empty")
)
