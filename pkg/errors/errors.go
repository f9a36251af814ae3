// Package errors defines the corpus server's error taxonomy and maps it onto
// HTTP status codes and CLI exit codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrLoad             = errors.New("corpus load failed")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrNotReady         = errors.New("corpus not ready")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

// CLI exit codes.
const (
	ExitOK         = 0
	ExitLoad       = 1
	ExitBadQuery   = 2
	ExitNotFound   = 3
	ExitUnexpected = 1
)

// LoadError reports that the corpus root could not be read. It is fatal: the
// service never reaches the Ready state.
type LoadError struct {
	Root string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: root %q: %v", ErrLoad.Error(), e.Root, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

// NotFoundError reports a lookup of an id that is not in the store.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDocumentNotFound.Error(), e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrDocumentNotFound
}

// InvalidQueryError reports malformed query input. Query echoes the
// caller's input unchanged.
type InvalidQueryError struct {
	Query  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidQuery.Error(), e.Query, e.Reason)
}

func (e *InvalidQueryError) Unwrap() error {
	return ErrInvalidQuery
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrLoad):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps err onto the CLI exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrLoad):
		return ExitLoad
	case errors.Is(err, ErrInvalidQuery):
		return ExitBadQuery
	case errors.Is(err, ErrDocumentNotFound):
		return ExitNotFound
	default:
		return ExitUnexpected
	}
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}

// IsInvalidQuery reports whether err is, or wraps, an InvalidQueryError.
func IsInvalidQuery(err error) bool {
	return errors.Is(err, ErrInvalidQuery)
}
