package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All packages MUST use these constants instead of hardcoded strings.
const (
	// Configuration errors: surfaced at definition or pre-validation time,
	// fatal, never retried.
	ErrCodeScheduleInvalidCron     ErrorCode = "schedule_invalid_cron"
	ErrCodeScheduleInvalidTimezone ErrorCode = "schedule_invalid_timezone"
	ErrCodeSensorInvalidDefinition ErrorCode = "sensor_invalid_definition"
	ErrCodePartitionInvalidKey     ErrorCode = "partition_invalid_key"

	// Invocation errors: programming errors in the caller, fatal at call time.
	ErrCodeSensorInvalidInvocation ErrorCode = "sensor_invalid_invocation"
	ErrCodeInstanceNotConfigured   ErrorCode = "instance_not_configured"
	ErrCodeInstanceNotDurable      ErrorCode = "instance_not_durable"

	// Classification errors: fatal for the tick; the daemon decides retry policy.
	ErrCodeSensorUnexpectedResult   ErrorCode = "sensor_unexpected_result"
	ErrCodeSensorSkipConflict       ErrorCode = "sensor_skip_conflict"
	ErrCodeSensorMissingTarget      ErrorCode = "sensor_missing_target"
	ErrCodeSensorUnknownTarget      ErrorCode = "sensor_unknown_target"
	ErrCodeSensorCursorNotAdvanced  ErrorCode = "sensor_cursor_not_advanced"
	ErrCodeSensorInvalidCursor      ErrorCode = "sensor_invalid_cursor"
	ErrCodeSensorInvalidResultShape ErrorCode = "sensor_invalid_result_shape"

	// Internal/Upstream.
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamEventLog   ErrorCode = "upstream_event_log_unavailable"
)

// AppError is the standard application error type used throughout the
// platform. All domain errors should be expressed as AppError to enable
// consistent error formatting, taxonomy checks, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether the error is a configuration error,
// i.e. one that should be rejected at definition-registration time and
// never retried.
func (e *AppError) IsConfiguration() bool {
	switch e.Code {
	case ErrCodeScheduleInvalidCron, ErrCodeScheduleInvalidTimezone,
		ErrCodeSensorInvalidDefinition, ErrCodePartitionInvalidKey:
		return true
	}
	return false
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
