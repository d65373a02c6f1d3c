package owm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tnphung/weather-app/internal/core"
)

func TestFetch_ReturnsFirstDescription(t *testing.T) {
	var gotQuery, gotAppID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAppID = r.URL.Query().Get("appid")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"weather":[{"main":"Clear","description":"clear sky"},{"main":"Mist","description":"mist"}],"name":"Sydney"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "app-123", time.Second)
	desc, err := c.Fetch(context.Background(), "New York", "US")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if desc != "clear sky" {
		t.Errorf("expected 'clear sky', got %q", desc)
	}
	if gotQuery != "New York,US" {
		t.Errorf("expected q='New York,US', got %q", gotQuery)
	}
	if gotAppID != "app-123" {
		t.Errorf("expected appid app-123, got %q", gotAppID)
	}
}

func TestFetch_NotFoundMapsToCityNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"cod":"404","message":"city not found"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "x", time.Second).Fetch(context.Background(), "Gotham", "US")
	if !errors.Is(err, core.ErrCityNotFound) {
		t.Fatalf("expected ErrCityNotFound, got %v", err)
	}
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"cod":401,"message":"Invalid API key"}`, "status 401"},
		{"server error", http.StatusBadGateway, strings.Repeat("x", 1000), "status 502"},
		{"bad json", http.StatusOK, `{"weather":`, "decode weather"},
		{"empty list", http.StatusOK, `{"weather":[]}`, "empty weather list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "x", time.Second).Fetch(context.Background(), "Paris", "FR")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, core.ErrCityNotFound) {
				t.Fatalf("must not be classified as city not found: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected %q in error, got %v", tt.wantMsg, err)
			}
			var se httpStatusError
			if errors.As(err, &se) != (tt.status != http.StatusOK) {
				t.Fatalf("status error classification mismatch: %v", err)
			}
			if len(err.Error()) > 400 {
				t.Fatalf("error body should be truncated, got %d bytes", len(err.Error()))
			}
		})
	}
}

func TestFetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "x", time.Second).Fetch(context.Background(), "Paris", "FR")
	if err == nil || core.KindOf(err) != core.KindInternal {
		t.Fatalf("expected unclassified transport error, got %v", err)
	}
}

func TestTruncateBody(t *testing.T) {
	if got := truncateBody([]byte("  short  "), 10); got != "short" {
		t.Errorf("expected 'short', got %q", got)
	}
	if got := truncateBody([]byte("abcdefgh"), 3); got != "abc…" {
		t.Errorf("expected 'abc…', got %q", got)
	}
	if got := truncateBody([]byte("abc"), 0); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
