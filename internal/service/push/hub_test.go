// internal/service/push/hub_test.go
package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	hub.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + userID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversToConnectedUser(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub, "user-1")

	// 注册是异步的，重发直到连接收到为止
	deadline := time.Now().Add(3 * time.Second)
	var payload []byte
	for time.Now().Before(deadline) {
		hub.SendToUser("user-1", []byte(`{"type":"order.completed"}`))
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if _, p, err := conn.ReadMessage(); err == nil {
			payload = p
			break
		}
	}
	if string(payload) != `{"type":"order.completed"}` {
		t.Fatalf("unexpected payload %q", payload)
	}
}

func TestHubDropsMessagesForOfflineUser(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// 没有任何连接时推送不阻塞、不 panic
	hub.SendToUser("ghost", []byte("hello"))
}
