package sessions

import "errors"

var (
	// ErrValidation signals a malformed request, such as an empty session id.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when no session exists for the id.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicateID is returned by Create when the id is already taken.
	ErrDuplicateID = errors.New("session id already exists")
	// ErrConflict is returned when the requested transition is not allowed from the current status.
	ErrConflict = errors.New("session state conflict")
	// ErrNotVerified is returned when processing requires a verified phone number.
	ErrNotVerified = errors.New("session phone number not verified")
)

// Failure codes recorded on failed sessions.
const (
	CodeExtractionFailed     = "EXTRACTION_FAILED"
	CodeInterpretationFailed = "INTERPRETATION_FAILED"
	CodeStorageError         = "STORAGE_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeStaleSession         = "STALE_SESSION"
)
