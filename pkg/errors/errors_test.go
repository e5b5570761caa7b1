package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if errors.Unwrap(wrapped) != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "reservation not found"},
			expected: "NOT_FOUND: reservation not found",
		},
		{
			name:     "with underlying error",
			appErr:   &AppError{Code: CodeInternal, Message: "internal error", Err: errors.New("socket closed")},
			expected: "INTERNAL_ERROR: internal error (caused by: socket closed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("Media"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad", nil), CodeValidation, http.StatusBadRequest},
		{"invalid input", InvalidInput("bad"), CodeInvalidInput, http.StatusBadRequest},
		{"forbidden", Forbidden("nope"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("taken"), CodeConflict, http.StatusConflict},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
		{"upstream", Upstream(errors.New("card_declined")), CodeUpstream, http.StatusInternalServerError},
		{"signature", Signature(nil), CodeSignature, http.StatusBadRequest},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Payment Gateway"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Reservation", "12345")

	if err.Details["id"] != "12345" {
		t.Errorf("expected id '12345', got %v", err.Details["id"])
	}
	if err.Message != "Reservation not found" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestUpstreamKeepsGatewayMessage(t *testing.T) {
	err := Upstream(errors.New("Your card was declined."))
	if err.Message != "Your card was declined." {
		t.Errorf("expected gateway message to be preserved, got %q", err.Message)
	}
}

func TestConflictWithReason(t *testing.T) {
	err := ConflictWithReason(ReasonAlreadyReleased, "payment already released")

	if err.Reason() != ReasonAlreadyReleased {
		t.Errorf("Reason() = %q, want %q", err.Reason(), ReasonAlreadyReleased)
	}
	wrapped := fmt.Errorf("release: %w", err)
	if !HasReason(wrapped, ReasonAlreadyReleased) {
		t.Errorf("HasReason() should see through wrapping")
	}
	if HasReason(wrapped, ReasonRentalNotEnded) {
		t.Errorf("HasReason() matched the wrong reason")
	}
	if Conflict("x").Reason() != "" {
		t.Errorf("Reason() without details should be empty")
	}
}

func TestIsAppError(t *testing.T) {
	if !IsAppError(NotFound("Media")) {
		t.Errorf("IsAppError() should return true for AppError")
	}
	if !IsAppError(fmt.Errorf("ctx: %w", Forbidden("x"))) {
		t.Errorf("IsAppError() should return true for wrapped AppError")
	}
	if IsAppError(errors.New("regular error")) {
		t.Errorf("IsAppError() should return false for regular error")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Media")
	if AsAppError(appErr) != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}

	regularErr := errors.New("regular error")
	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestAppError_ToJSON(t *testing.T) {
	jsonStr := string(NotFoundWithID("Reservation", "12345").ToJSON())

	if !strings.Contains(jsonStr, "NOT_FOUND") {
		t.Errorf("ToJSON() should contain error code")
	}
	if !strings.Contains(jsonStr, "not found") {
		t.Errorf("ToJSON() should contain error message")
	}
}
