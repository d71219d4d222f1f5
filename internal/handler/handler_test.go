package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vaultq/vaultq/internal/handler/dto"
	"github.com/vaultq/vaultq/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestHandler_NotFound(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error.Code != "NOT_FOUND" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodPatch, "/save/u1", nil)
	rec := httptest.NewRecorder()

	h.MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error.Code != "METHOD_NOT_ALLOWED" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestAccountHandler_Save_InvalidBodies(t *testing.T) {
	h := NewAccountHandler(service.NewAccountService(nil, nil, 100), testLogger(), 500)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"accounts": [`, "INVALID_JSON"},
		{"no records", `{}`, "EMPTY_BATCH"},
		{"wrong shape", `{"accounts": "not a list"}`, "INVALID_JSON"},
		{"missing fields", `{"account": {"email": "a@example.com"}}`, "VALIDATION_ERROR"},
		{"duplicate in batch", `{"accounts": [
			{"user_agent":"ua","email":"a@example.com","password":"p","cookie":"c"},
			{"user_agent":"ua","email":"a@example.com","password":"p","cookie":"c"}
		]}`, "DUPLICATE_IN_BATCH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/accounts/save/u1", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Save(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestAccountHandler_Next_InvalidCount(t *testing.T) {
	h := NewAccountHandler(service.NewAccountService(nil, nil, 100), testLogger(), 500)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"zero", `{"count": 0}`, "INVALID_COUNT"},
		{"negative", `{"count": -2}`, "INVALID_COUNT"},
		{"over cap", `{"count": 101}`, "COUNT_TOO_LARGE"},
		{"not a number", `{"count": "five"}`, "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/accounts/next/u1", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Next(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestEmailHandler_Save_InvalidBodies(t *testing.T) {
	h := NewEmailHandler(service.NewEmailService(nil, nil, 100), testLogger(), 500)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"emails": [`, "INVALID_JSON"},
		{"no records", `{}`, "EMPTY_BATCH"},
		{"duplicate in batch", `{"emails": ["a@example.com", "a@example.com"]}`, "DUPLICATE_IN_BATCH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/emails/save/u1", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Save(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestClaimRequest_DefaultCount(t *testing.T) {
	t.Parallel()

	var req dto.ClaimRequest
	if got := req.RequestedCount(); got != 1 {
		t.Errorf("default count = %d, want 1", got)
	}

	five := 5
	req.Count = &five
	if got := req.RequestedCount(); got != 5 {
		t.Errorf("explicit count = %d, want 5", got)
	}
}

func TestSaveRequests_PolymorphicBodies(t *testing.T) {
	t.Parallel()

	var accounts dto.SaveAccountsRequest
	if err := json.Unmarshal([]byte(`{"account": {"user_agent":"ua","email":"a@b.co","password":"p","cookie":"c"}}`), &accounts); err != nil {
		t.Fatalf("unmarshal single account: %v", err)
	}
	if got := accounts.Candidates(); len(got) != 1 || got[0].Email != "a@b.co" {
		t.Errorf("single account candidates = %+v", got)
	}

	var emails dto.SaveEmailsRequest
	if err := json.Unmarshal([]byte(`{"email": "a@b.co"}`), &emails); err != nil {
		t.Fatalf("unmarshal single email: %v", err)
	}
	if got := emails.Addresses(); len(got) != 1 || got[0] != "a@b.co" {
		t.Errorf("single email addresses = %v", got)
	}

	if err := json.Unmarshal([]byte(`{"emails": ["a@b.co", "c@d.co"]}`), &emails); err != nil {
		t.Fatalf("unmarshal email list: %v", err)
	}
	if got := emails.Addresses(); len(got) != 2 {
		t.Errorf("email list addresses = %v", got)
	}
}
