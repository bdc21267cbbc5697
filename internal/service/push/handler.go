// internal/service/push/handler.go
package push

import (
	"net/http"

	"atlas/internal/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 网关部署在内网边界之后，来源校验交给接入层
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRoutes 注册 WebSocket 接入端点。
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /ws/{userId}", h.serveWS)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h, userID, conn)
	h.register <- client

	go client.writePump()
	go client.readPump()
}
