package errors

import (
	"fmt"
	"net/http"
)

// Caller-facing outcome codes. The HTTP layer renders Code and Message only.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeRealmNameTaken   = "REALM_NAME_TAKEN"
	CodeConflict         = "CONFLICT"
	CodeProcessingError  = "PROCESSING_ERROR"
)

// Field validation codes.
const (
	FieldRequired       = "required"
	FieldInvalidFormat  = "invalid_format"
	FieldInvalidValue   = "invalid_value"
	FieldTooLong        = "too_long"
	FieldNotModifiable  = "not_modifiable"
	FieldRealmNameRules = "realm_name_rules"
)

// ErrUnauthenticated is returned when no actor identity is present.
func ErrUnauthenticated() *AppError {
	return Unauthorized(CodeUnauthorized, "authentication required")
}

// ErrForbiddenf reports that the actor lacks the role for an intent.
func ErrForbiddenf(intent string) *AppError {
	return Forbidden(CodeForbidden, "not allowed to "+intent+" this realm")
}

// ErrRealmNotFound is the invalid-request outcome for a missing record.
func ErrRealmNotFound(id int64) *AppError {
	return BadRequest(CodeInvalidRequest, "realm request not found").
		WithParams(map[string]interface{}{"id": id})
}

// ErrIllegalTransition is the invalid-request outcome for a transition the
// current state does not permit.
func ErrIllegalTransition(intent, reason string) *AppError {
	return BadRequest(CodeInvalidRequest, fmt.Sprintf("cannot %s: %s", intent, reason))
}

// ErrValidation reports field-level schema violations.
func ErrValidation(fields []FieldError) *AppError {
	return UnprocessableEntity(CodeValidationFailed, "request failed validation").
		WithFieldErrors(fields)
}

// ErrRealmNameTaken reports a realm name collision.
func ErrRealmNameTaken(realm string) *AppError {
	return Conflict(CodeRealmNameTaken, "realm name is already taken").
		WithParams(map[string]interface{}{"realm": realm})
}

// ErrConcurrentUpdate reports that another writer changed the record first.
func ErrConcurrentUpdate(id int64) *AppError {
	return Conflict(CodeConflict, "realm request was modified concurrently").
		WithParams(map[string]interface{}{"id": id})
}

// ErrProcessing wraps an unexpected failure. The cause is kept for logging only.
func ErrProcessing(err error) *AppError {
	return &AppError{
		Code:       CodeProcessingError,
		Message:    "the request could not be processed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
