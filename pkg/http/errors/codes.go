package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeInvalidID        = "invalid_id"
	ErrCodeUnknownVariant   = "unknown_variant"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// Submission errors
	ErrCodeInactiveWindow      = "inactive_window"
	ErrCodeDuplicateSubmission = "duplicate_submission"

	// Server errors
	ErrCodeInternalError = "internal_error"
	ErrCodeUpstreamError = "upstream_error"
)
