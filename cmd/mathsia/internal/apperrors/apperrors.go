// Package apperrors provides centralized error handling and HTTP error
// responses. It defines the application error codes, the APIError type,
// and middleware for consistent error handling across handlers.
package apperrors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mathsia/mathsia/cmd/mathsia/internal/constants"
	"github.com/mathsia/mathsia/cmd/mathsia/internal/logging"
)

// ErrorCode identifies a failure class in API responses.
type ErrorCode string

const (
	// Authentication errors
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeInactiveUser       ErrorCode = "inactive_user"
	CodeInvalidToken       ErrorCode = "invalid_token"
	CodeInvalidTokenType   ErrorCode = "invalid_token_type"
	CodeNotAuthenticated   ErrorCode = "not_authenticated"
	CodeInvalidPassword    ErrorCode = "invalid_password"

	// Authorization errors
	CodeInsufficientPermissions ErrorCode = "insufficient_permissions"

	// Resource errors
	CodeUserNotFound     ErrorCode = "user_not_found"
	CodeStudentNotFound  ErrorCode = "student_not_found"
	CodeMemocardNotFound ErrorCode = "memocard_not_found"
	CodeUsernameExists   ErrorCode = "username_exists"
	CodeEmailExists      ErrorCode = "email_exists"
	CodeDuplicateKey     ErrorCode = "duplicate_key"

	// Validation errors
	CodeValidationError     ErrorCode = "validation_error"
	CodeInvalidRole         ErrorCode = "invalid_role"
	CodeInvalidLevel        ErrorCode = "invalid_level"
	CodeInvalidDifficulty   ErrorCode = "invalid_difficulty"
	CodeInvalidType         ErrorCode = "invalid_type"
	CodeInvalidID           ErrorCode = "invalid_id"
	CodeInactiveMemocard    ErrorCode = "inactive_memocard"
	CodeUnknownMemocardType ErrorCode = "unknown_memocard_type"

	// Server errors
	CodeInternalError ErrorCode = "internal_error"
	CodeDatabaseError ErrorCode = "database_error"
)

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError represents an application error with its HTTP mapping.
type APIError struct {
	Message    string
	StatusCode int
	ErrorCode  ErrorCode
	Err        error // wrapped cause
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Wrap attaches a cause to the error.
func (e *APIError) Wrap(err error) *APIError {
	e.Err = err
	return e
}

// New creates a new API error.
func New(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{Message: message, StatusCode: statusCode, ErrorCode: code}
}

// NewBadRequest creates a 400 error.
func NewBadRequest(code ErrorCode, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

// NewUnauthorized creates a 401 error.
func NewUnauthorized(code ErrorCode, message string) *APIError {
	return New(http.StatusUnauthorized, code, message)
}

// NewForbidden creates a 403 error.
func NewForbidden(message string) *APIError {
	return New(http.StatusForbidden, CodeInsufficientPermissions, message)
}

// NewNotFound creates a 404 error.
func NewNotFound(code ErrorCode, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

// NewConflict creates a 409 error.
func NewConflict(code ErrorCode, message string) *APIError {
	return New(http.StatusConflict, code, message)
}

// NewInternal creates a 500 error.
func NewInternal(message string) *APIError {
	return New(http.StatusInternalServerError, CodeInternalError, message)
}

// NewDatabase creates a 500 error wrapping a storage failure.
func NewDatabase(err error) *APIError {
	return New(http.StatusInternalServerError, CodeDatabaseError, "database error").Wrap(err)
}

// MapMongoError maps MongoDB driver errors to appropriate API errors.
// notFound is returned for ErrNoDocuments so each call site reports the
// resource that vanished rather than a generic code.
func MapMongoError(err error, notFound *APIError) *APIError {
	if mongo.IsDuplicateKeyError(err) {
		return NewConflict(CodeDuplicateKey, "resource already exists")
	}
	if err == mongo.ErrNoDocuments {
		return notFound
	}
	return NewDatabase(err)
}

// WriteError writes an error response, logging server-side failures.
func WriteError(w http.ResponseWriter, r *http.Request, apiErr *APIError) {
	requestID := logging.GetRequestID(r.Context())

	response := ErrorResponse{
		Error:     apiErr.Message,
		Code:      apiErr.StatusCode,
		ErrorCode: apiErr.ErrorCode,
		RequestID: requestID,
	}

	logger := logging.GetLogger().WithContext(r.Context())
	if apiErr.StatusCode >= 500 {
		logger.Zerolog().Error().
			Err(apiErr.Err).
			Int("status", apiErr.StatusCode).
			Str("error_code", string(apiErr.ErrorCode)).
			Msg(apiErr.Message)
	} else {
		logger.Zerolog().Warn().
			Int("status", apiErr.StatusCode).
			Str("error_code", string(apiErr.ErrorCode)).
			Msg(apiErr.Message)
	}

	w.Header().Set(constants.HeaderContentType, constants.MIMEApplicationJSON)
	w.WriteHeader(apiErr.StatusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// WriteErrorFrom converts any error to an API error response.
func WriteErrorFrom(w http.ResponseWriter, r *http.Request, err error) {
	if apiErr, ok := err.(*APIError); ok {
		WriteError(w, r, apiErr)
		return
	}
	WriteError(w, r, NewInternal("an unexpected error occurred").Wrap(err))
}

// RecoveryMiddleware catches panics and converts them to 500 errors.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.GetLogger().WithContext(r.Context()).Zerolog().Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from panic")
				WriteError(w, r, NewInternal("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
