package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "adspace/pkg/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantReason string
	}{
		{"not found", apperrors.NotFound("Media"), http.StatusNotFound, "Media not found", ""},
		{"conflict reason", apperrors.ConflictWithReason(apperrors.ReasonRentalNotEnded, "rental period has not ended"),
			http.StatusConflict, "rental period has not ended", apperrors.ReasonRentalNotEnded},
		{"upstream keeps message", apperrors.Upstream(errors.New("No such destination: acct_x")),
			http.StatusInternalServerError, "No such destination: acct_x", ""},
		{"plain error hidden", errors.New("mongo: socket closed"), http.StatusInternalServerError, "An internal error occurred", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := WriteError(rec, tt.err); err != nil {
				t.Fatalf("WriteError() = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if tt.wantReason != "" && body.Details["reason"] != tt.wantReason {
				t.Errorf("reason = %v, want %q", body.Details["reason"], tt.wantReason)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"nam":"x"}`, true},
		{"trailing object", `{"name":"x"}{"name":"y"}`, true},
		{"malformed", `{"name":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(req, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && apperrors.AsAppError(err).Code != apperrors.CodeInvalidInput {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestQueryDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?start=2025-01-10&bad=10/01/2025", nil)

	d, err := QueryDate(req, "start")
	if err != nil {
		t.Fatalf("QueryDate() error = %v", err)
	}
	if d.Format("2006-01-02") != "2025-01-10" {
		t.Errorf("got %v", d)
	}
	if _, err := QueryDate(req, "bad"); err == nil {
		t.Errorf("expected error for malformed date")
	}
	if _, err := QueryDate(req, "missing"); err == nil {
		t.Errorf("expected error for missing date")
	}
}
