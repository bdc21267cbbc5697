// internal/service/stock/interfaces/http_handler_test.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"atlas/internal/service/stock/actor"
	"atlas/internal/service/stock/application"
	"atlas/internal/service/stock/domain"
	"atlas/internal/service/stock/infrastructure"

	"go.opentelemetry.io/otel"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ledger := infrastructure.NewMemoryLedger()
	actors := actor.NewManager(ledger)
	t.Cleanup(actors.Close)

	service := application.NewStockService(actors, ledger, otel.Tracer("stock-test"), time.Minute)
	mux := http.NewServeMux()
	NewStockHandler(service).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStockEndpoints(t *testing.T) {
	srv := newTestServer(t)

	// 初始化在库数量
	resp := doJSON(t, http.MethodPut, srv.URL+"/stock/p1", `{"onHand": 10}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set on-hand: status %d", resp.StatusCode)
	}

	// 预占成功
	resp = doJSON(t, http.MethodPost, srv.URL+"/stock/p1/reserve", `{"quantity": 7, "orderId": "o1", "ttlMinutes": 15}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reserve: status %d", resp.StatusCode)
	}

	// 超出可用量 -> 409
	resp = doJSON(t, http.MethodPost, srv.URL+"/stock/p1/reserve", `{"quantity": 4, "orderId": "o2", "ttlMinutes": 15}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("oversell reserve: status %d, want 409", resp.StatusCode)
	}

	// 查询快照
	resp = doJSON(t, http.MethodGet, srv.URL+"/stock/p1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var snap domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.OnHand != 10 || snap.Reserved != 7 || snap.Available != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// 扣减后再释放是 no-op
	resp = doJSON(t, http.MethodPost, srv.URL+"/stock/p1/reduce", `{"quantity": 7, "orderId": "o1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reduce: status %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/stock/p1/release", `{"orderId": "o1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("release after reduce: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/stock/p1", "")
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.OnHand != 3 || snap.Reserved != 0 {
		t.Fatalf("unexpected snapshot after reduce: %+v", snap)
	}

	// 回补
	resp = doJSON(t, http.MethodPost, srv.URL+"/stock/p1/restore", `{"quantity": 7}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore: status %d", resp.StatusCode)
	}
}

func TestReserveValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"zero quantity", `{"quantity": 0, "orderId": "o1", "ttlMinutes": 15}`},
		{"missing order", `{"quantity": 1, "ttlMinutes": 15}`},
		{"zero ttl", `{"quantity": 1, "orderId": "o1"}`},
		{"garbage body", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/stock/p1/reserve", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestReduceWithoutReservationConflicts(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, http.MethodPut, srv.URL+"/stock/p1", `{"onHand": 5}`)
	resp := doJSON(t, http.MethodPost, srv.URL+"/stock/p1/reduce", `{"quantity": 2, "orderId": "ghost"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409", resp.StatusCode)
	}
}
