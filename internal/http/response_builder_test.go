package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parcelas/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body(map[string]int{"count": 2}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("X-Custom"); got != "value" {
		t.Errorf("X-Custom = %q, want value", got)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"count":2}` {
		t.Errorf("Body = %q", got)
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NoContent().Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"f": func() {}}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"bad request", badRequest("invalid JSON body"), http.StatusBadRequest, `"invalid JSON body"`},
		{"validation", core.NewValidationError("amount", "must be greater than zero"), http.StatusUnprocessableEntity, `"field":"amount"`},
		{"wrapped validation", fmt.Errorf("create: %w", core.NewValidationError("name", "empty")), http.StatusUnprocessableEntity, `"field":"name"`},
		{"category", core.ErrCategoryNotFound, http.StatusNotFound, "category not found"},
		{"entry", core.ErrEntryNotFound, http.StatusNotFound, "entry not found"},
		{"responsible", core.ErrResponsibleNotFound, http.StatusNotFound, "responsible not found"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "request cancelled"},
		{"storage", &core.StorageError{Op: "sum", Err: errors.New("disk full")}, http.StatusInternalServerError, `"internal error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			errorFor(context.Background(), "test", tt.err).Write(w)

			if w.Code != tt.wantCode {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("Body %q missing %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorForHidesStorageDetail(t *testing.T) {
	w := httptest.NewRecorder()
	errorFor(context.Background(), "test", &core.StorageError{Op: "sum", Err: errors.New("disk full")}).Write(w)

	if strings.Contains(w.Body.String(), "disk full") {
		t.Errorf("storage detail leaked: %s", w.Body.String())
	}
}

func TestFormatBalance(t *testing.T) {
	b := core.BalanceStats{
		Income:  core.Money{Cents: 123456},
		Expense: core.Money{Cents: 100},
		Balance: core.Money{Cents: 123356},
	}
	got := formatBalance(b, "USD")

	if got.IncomeFormatted != "$1,234.56" {
		t.Errorf("IncomeFormatted = %q", got.IncomeFormatted)
	}
	if got.ExpenseFormatted != "$1.00" {
		t.Errorf("ExpenseFormatted = %q", got.ExpenseFormatted)
	}
	if got.Currency != "USD" || got.Income.Cents != 123456 {
		t.Errorf("unexpected %+v", got)
	}
}
