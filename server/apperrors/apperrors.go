package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Symbolic codes for every error category the data layer can surface.
// Anything the database hands back must normalize to exactly one of these.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeDuplicate      = "DUPLICATE"
	CodeFKViolation    = "FK_VIOLATION"
	CodeForbidden      = "FORBIDDEN"
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "AUTH_ERROR"
	CodeUnknown        = "UNKNOWN_ERROR"
)

// Postgres error codes we care about. Everything else falls through to 'unknown'.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInsufficientPrivs   = "42501"
)

type Error struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"status_code"`
	Details    string `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func NewError(message, code string, statusCode int, details string) *Error {
	return &Error{Message: message, Code: code, StatusCode: statusCode, Details: details}
}

func NotFound(resource string) *Error {
	return NewError(fmt.Sprintf("%v not found", resource), CodeNotFound, http.StatusNotFound, "")
}

func Duplicate(details string) *Error {
	return NewError("resource already exists", CodeDuplicate, http.StatusConflict, details)
}

func FKViolation(details string) *Error {
	return NewError("referenced resource not found", CodeFKViolation, http.StatusBadRequest, details)
}

func Forbidden(details string) *Error {
	return NewError("permission denied", CodeForbidden, http.StatusForbidden, details)
}

// Validation errors are always constructed locally by callers,
// never derived from database error codes.
func Validation(message string) *Error {
	return NewError(message, CodeValidation, http.StatusBadRequest, "")
}

// Authentication is raised locally when an operation requires a
// signed-in user and none is present.
func Authentication(details string) *Error {
	return NewError("not authenticated", CodeAuthentication, http.StatusUnauthorized, details)
}

func Unknown(err error) *Error {
	normalized := NewError(err.Error(), CodeUnknown, http.StatusInternalServerError, "")
	normalized.cause = err
	return normalized
}

// FromDB normalizes any error coming out of the database layer into an *Error.
// A nil input stays nil, and an already-normalized error passes through untouched,
// so repository code can wrap every return value in one call.
func FromDB(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("resource")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Duplicate(err.Error())
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return FKViolation(err.Error())
	}

	// The gorm postgres driver translates most constraint failures into the
	// gorm sentinels above, but raw pgconn errors still leak out of Exec paths.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return Duplicate(pgErr.Detail)
		case pgForeignKeyViolation:
			return FKViolation(pgErr.Detail)
		case pgInsufficientPrivs:
			return Forbidden(pgErr.Detail)
		default:
			normalized := NewError(pgErr.Message, pgErr.Code, http.StatusInternalServerError, pgErr.Detail)
			normalized.cause = err
			return normalized
		}
	}

	return Unknown(err)
}

// FromDBAs behaves like FromDB but reports record-not-found
// with the given resource name instead of the generic one.
func FromDBAs(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(resource)
	}
	return FromDB(err)
}

// IsCode reports whether err normalizes to the given symbolic code.
func IsCode(err error, code string) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// StatusCode returns the HTTP status class for err,
// defaulting to 500 for anything unnormalized.
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
