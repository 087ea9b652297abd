package services

import "errors"

// Failure taxonomy for the media pipeline. Handlers map these to HTTP
// statuses; everything else bubbles as a 500.
var (
	// ErrValidationFailed is a caller error with no side effects: nothing was
	// written anywhere.
	ErrValidationFailed = errors.New("validation failed")

	// ErrStorageWrite means the blob write itself failed; no metadata row was
	// created.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrStorageRead is an I/O failure while serving. Not retried; surfaced
	// immediately.
	ErrStorageRead = errors.New("storage read failed")

	// ErrMetadataWrite means bytes were durably written but the metadata
	// commit failed. The blob is orphaned (reconciled out-of-band); the
	// caller must not assume the URL is live.
	ErrMetadataWrite = errors.New("metadata write failed")

	// ErrMetadataInconsistent marks blob/record disagreement. Metadata status
	// stays authoritative for visibility.
	ErrMetadataInconsistent = errors.New("metadata inconsistent with storage")

	ErrNotFound            = errors.New("file not found")
	ErrRangeNotSatisfiable = errors.New("requested range not satisfiable")
)
