// Package errors defines the application error type shared by the API, the
// synchronizer and the trigger consumer. Every Error carries an HTTP status
// and decides whether the consumer may retry it.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound   = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal   = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrConflict   = NewError("CONFLICT", "resource conflict", http.StatusConflict)

	// ErrDataAccess marks a failed read or write against the catalog,
	// container or membership stores. It is retryable.
	ErrDataAccess = NewError("DATA_ACCESS_ERROR", "data access failed", http.StatusBadGateway)
	// ErrRefreshInProgress means another process holds the store refresh
	// lock. It is retryable.
	ErrRefreshInProgress = NewError("REFRESH_IN_PROGRESS", "a refresh is already running for this store", http.StatusConflict)
)

// nonRetryable lists codes a retry cannot fix.
var nonRetryable = map[string]bool{
	ErrValidation.Code: true,
	ErrNotFound.Code:   true,
	ErrConflict.Code:   true,
}

// internalDetails are kept for logs and never rendered to clients.
var internalDetails = map[string]bool{
	"stack_trace": true,
}

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error
	// retryable overrides the classification derived from Code and Cause.
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if detail, ok := e.Details["message"].(string); ok && detail != "" {
		msg = detail
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return !nonRetryable[e.Code]
}

// IsFatal is the negation of IsRetryable, except that a conflict is neither:
// it is not retried and not dead-lettered as malformed.
func (e *Error) IsFatal() bool {
	if e.Code == ErrConflict.Code && e.retryable == nil {
		return false
	}
	return !e.IsRetryable()
}

// clone copies e including its details so that derived errors never write
// into the shared sentinels.
func (e *Error) clone() *Error {
	err := *e
	if e.Details != nil {
		err.Details = make(map[string]interface{}, len(e.Details)+1)
		for k, v := range e.Details {
			err.Details[k] = v
		}
	}
	return &err
}

func (e *Error) WithCause(cause error) *Error {
	err := e.clone()
	err.Cause = cause
	return err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := e.clone()
	if err.Details == nil {
		err.Details = make(map[string]interface{}, 1)
	}
	err.Details[key] = value
	return err
}

func (e *Error) AsRetryable() *Error {
	err := e.clone()
	retryable := true
	err.retryable = &retryable
	return err
}

func (e *Error) AsFatal() *Error {
	err := e.clone()
	retryable := false
	err.retryable = &retryable
	return err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound.Code)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation.Code)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrConflict.Code)
}

func IsDataAccess(err error) bool {
	return hasCode(err, ErrDataAccess.Code)
}

func IsRefreshInProgress(err error) bool {
	return hasCode(err, ErrRefreshInProgress.Code)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

type ErrorResponse struct {
	Error     string                 `json:"error"`
	ErrorCode string                 `json:"error_code"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func ToErrorResponse(err error) ErrorResponse {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal
	}

	var details map[string]interface{}
	for k, v := range appErr.Details {
		if internalDetails[k] {
			continue
		}
		if details == nil {
			details = make(map[string]interface{}, len(appErr.Details))
		}
		details[k] = v
	}

	return ErrorResponse{
		Error:     appErr.Message,
		ErrorCode: appErr.Code,
		Details:   details,
	}
}
