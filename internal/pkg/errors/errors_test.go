package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New("INVALID_REQUEST", "realm request not found", http.StatusBadRequest),
			want: "INVALID_REQUEST: realm request not found",
		},
		{
			name: "with wrapped error",
			err:  Wrap(fmt.Errorf("db error"), "PROCESSING_ERROR", "database failure", http.StatusInternalServerError),
			want: "PROCESSING_ERROR: database failure: db error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := ErrProcessing(inner)

	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match inner error")
	}
}

func TestIsAppError(t *testing.T) {
	wrapped := fmt.Errorf("wrapped: %w", ErrRealmNameTaken("my-realm"))

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should return true for wrapped AppError")
	}
	if got.Code != CodeRealmNameTaken {
		t.Errorf("Code = %q, want %s", got.Code, CodeRealmNameTaken)
	}
	if got.Params["realm"] != "my-realm" {
		t.Errorf("Params[realm] = %v", got.Params["realm"])
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if got := CodeOf(ErrConcurrentUpdate(3)); got != CodeConflict {
		t.Errorf("CodeOf(conflict) = %q", got)
	}
}

func TestOutcomeConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
		wantCode   string
	}{
		{"unauthenticated", ErrUnauthenticated(), http.StatusUnauthorized, CodeUnauthorized},
		{"forbidden", ErrForbiddenf("approve"), http.StatusForbidden, CodeForbidden},
		{"not found", ErrRealmNotFound(9), http.StatusBadRequest, CodeInvalidRequest},
		{"illegal", ErrIllegalTransition("restore", "realm is not archived"), http.StatusBadRequest, CodeInvalidRequest},
		{"validation", ErrValidation([]FieldError{{Field: "realm", Code: FieldRealmNameRules}}), http.StatusUnprocessableEntity, CodeValidationFailed},
		{"taken", ErrRealmNameTaken("x"), http.StatusConflict, CodeRealmNameTaken},
		{"processing", ErrProcessing(fmt.Errorf("boom")), http.StatusInternalServerError, CodeProcessingError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
		})
	}
}

func TestErrProcessing_DoesNotLeakCause(t *testing.T) {
	err := ErrProcessing(fmt.Errorf("pq: password authentication failed"))
	if err.Message != "the request could not be processed" {
		t.Errorf("Message = %q", err.Message)
	}
}
