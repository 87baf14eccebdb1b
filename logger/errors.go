package logger

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeS3         ErrorType = "S3_ERROR"
	ErrorTypeDynamoDB   ErrorType = "DYNAMODB_ERROR"
	ErrorTypeStorage    ErrorType = "STORAGE_ERROR"
	ErrorTypeConfig     ErrorType = "CONFIG_ERROR"
	ErrorTypeData       ErrorType = "DATA_ERROR"
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeSession    ErrorType = "SESSION_ERROR"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
)

// Error codes surfaced to callers of the filtering core.
const (
	CodeMissingTitleField = "MISSING_TITLE_FIELD"
	CodeInvalidCriteria   = "INVALID_CRITERIA"
	CodeSessionState      = "SESSION_STATE"
	CodeNoData            = "NO_DATA"
)

// AppError represents an application-specific error with context
type AppError struct {
	Type     ErrorType
	Message  string
	Code     string
	Cause    error
	Metadata map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithCode creates a new application error with an error code
func NewAppErrorWithCode(errorType ErrorType, message, code string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Code:    code,
		Cause:   cause,
	}
}

// NewAppErrorWithMetadata creates a new application error with metadata
func NewAppErrorWithMetadata(errorType ErrorType, message string, cause error, metadata map[string]interface{}) *AppError {
	return &AppError{
		Type:     errorType,
		Message:  message,
		Cause:    cause,
		Metadata: metadata,
	}
}

// MissingTitleField reports that no column could be used as the title.
func MissingTitleField(columns []string) *AppError {
	return &AppError{
		Type:     ErrorTypeData,
		Message:  "no title column found",
		Code:     CodeMissingTitleField,
		Metadata: map[string]interface{}{"columns": columns},
	}
}

// InvalidCriteria reports filter criteria rejected before filtering.
func InvalidCriteria(format string, args ...interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: fmt.Sprintf(format, args...),
		Code:    CodeInvalidCriteria,
	}
}

// SessionState reports a review operation invalid in the current state.
func SessionState(operation, state string) *AppError {
	return &AppError{
		Type:    ErrorTypeSession,
		Message: fmt.Sprintf("cannot %s while session is %s", operation, state),
		Code:    CodeSessionState,
		Metadata: map[string]interface{}{
			"operation": operation,
			"state":     state,
		},
	}
}

// ErrorHandler provides centralized error handling and logging
type ErrorHandler struct {
	logger *Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle logs err and returns it as an *AppError
func (eh *ErrorHandler) Handle(err error, context string) error {
	if err == nil {
		return nil
	}

	if appErr, ok := AsAppError(err); ok {
		eh.logger.Error(
			fmt.Sprintf("%s: %s", context, appErr.Message),
			err,
			appErr.Metadata,
		)
		return appErr
	}

	eh.logger.Error(fmt.Sprintf("%s: unexpected error", context), err)
	return NewAppError(ErrorTypeInternal, context, err)
}

// Recover converts a panic into an *AppError stored in *errp. It must be
// deferred directly: defer eh.Recover(&err, "context").
func (eh *ErrorHandler) Recover(errp *error, context string) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("panic recovered: %v", r)
	eh.logger.Error(fmt.Sprintf("%s: panic occurred", context), err)
	if errp != nil {
		*errp = NewAppError(ErrorTypeInternal, "panic recovered", err)
	}
}

// WrapError wraps an existing error with additional context
func WrapError(err error, errorType ErrorType, message string) error {
	if err == nil {
		return nil
	}
	return NewAppError(errorType, message, err)
}

// AsAppError finds the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// IsErrorCode checks if an error carries a specific code
func IsErrorCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
