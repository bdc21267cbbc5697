// internal/pkg/httpclient/client_test.go
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atlas/internal/pkg/apperr"

	"go.opentelemetry.io/otel"
)

func TestPostJSONSendsAuthAndDecodesResponse(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		var body map[string]int
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]int{"echo": body["value"]})
	}))
	defer srv.Close()

	client := NewClient(otel.Tracer("test"))
	var resp map[string]int
	err := client.PostJSON(context.Background(), srv.URL, "secret-token", map[string]int{"value": 42}, &resp)
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}
	if resp["echo"] != 42 {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestConflictStatusMapsToConflictError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient stock", http.StatusConflict)
	}))
	defer srv.Close()

	client := NewClient(otel.Tracer("test"))
	err := client.PostJSON(context.Background(), srv.URL, "", nil, nil)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestServerErrorMapsToExternalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(otel.Tracer("test"))
	err := client.GetJSON(context.Background(), srv.URL, "", nil)
	if !errors.Is(err, apperr.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestPerCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(otel.Tracer("test"))
	client.Timeout = 50 * time.Millisecond

	start := time.Now()
	err := client.GetJSON(context.Background(), srv.URL, "", nil)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}
