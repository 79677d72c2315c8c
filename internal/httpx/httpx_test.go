package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 12},
		{"page=3&limit=20", 3, 20},
		{"page=0&limit=0", 1, 1},
		{"page=-4&limit=500", 1, 50},
		{"page=abc&limit=xyz", 1, 12},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/products?"+tt.query, nil)
			p := ParsePage(r)
			if p.Page != tt.wantPage || p.Limit != tt.wantLimit {
				t.Errorf("expected page=%d limit=%d, got page=%d limit=%d", tt.wantPage, tt.wantLimit, p.Page, p.Limit)
			}
		})
	}
}

func TestPageResult(t *testing.T) {
	p := Page{Page: 2, Limit: 12}
	res := p.Result(25)
	if res.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", res.TotalPages)
	}
	if p.Offset() != 12 {
		t.Errorf("expected offset 12, got %d", p.Offset())
	}
	if (Page{Page: 1, Limit: 12}).Result(0).TotalPages != 0 {
		t.Error("expected 0 pages for empty result")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"stock error", &domain.StockError{ProductName: "Tajine", Err: domain.ErrInsufficientStock}, 400, `Insufficient stock for "Tajine"`},
		{"validation", domain.Invalid("quantity", "quantity must be between 1 and 99"), 400, "quantity must be between 1 and 99"},
		{"empty cart", fmt.Errorf("place order: %w", domain.ErrCartEmpty), 400, "Cart is empty"},
		{"not found", domain.ErrNotFound, 404, "not found"},
		{"duplicate", domain.ErrDuplicate, 409, "already exists"},
		{"closed order", fmt.Errorf("order o1: %w", domain.ErrStatusTransition), 409, "Order status cannot change from a cancelled or refunded order"},
		{"unknown", errors.New("connection reset"), 500, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := StatusFor(tt.err)
			if status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, status)
			}
			if message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, message)
			}
		})
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, slog.New(slog.NewTextHandler(io.Discard, nil)), domain.ErrNotFound, "lookup failed")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "not found" {
		t.Errorf("expected 'not found', got %s", resp["error"])
	}
}
