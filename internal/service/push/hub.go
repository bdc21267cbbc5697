// internal/service/push/hub.go
//
// 推送网关：维护用户的 WebSocket 长连接，把订单事件实时推给发起下单的用户。
package push

import (
	"context"
	"time"

	"atlas/internal/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 16
)

// Hub 按 userID 维护连接注册表。一个用户可以有多个连接（多端登录），
// 推送时广播给该用户的全部连接。
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	outbound   chan userMessage
}

type userMessage struct {
	userID  string
	payload []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan userMessage, 256),
	}
}

// Run 驱动注册表，单 goroutine 串行处理注册/注销/推送，注册表无需加锁。
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			conns, ok := h.clients[client.userID]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[client.userID] = conns
			}
			conns[client] = struct{}{}

		case client := <-h.unregister:
			if conns, ok := h.clients[client.userID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}

		case msg := <-h.outbound:
			for client := range h.clients[msg.userID] {
				select {
				case client.send <- msg.payload:
				default:
					// 消费不过来的慢连接直接断开，防止积压拖垮网关
					delete(h.clients[msg.userID], client)
					close(client.send)
				}
			}

		case <-ctx.Done():
			for _, conns := range h.clients {
				for client := range conns {
					close(client.send)
				}
			}
			return
		}
	}
}

// SendToUser 把载荷推给某个用户的全部连接。用户不在线时静默丢弃。
func (h *Hub) SendToUser(userID string, payload []byte) {
	h.outbound <- userMessage{userID: userID, payload: payload}
}

// Client 是一条 WebSocket 连接。
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

func newClient(hub *Hub, userID string, conn *websocket.Conn) *Client {
	return &Client{hub: hub, userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
}

// readPump 只负责探活：读取并丢弃入站帧，连接断开时注销。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Logger().Warn().Err(err).Str("user_id", c.userID).Msg("websocket closed unexpectedly")
			}
			return
		}
	}
}

// writePump 把 send 通道里的载荷写给对端，并按周期发 ping 保活。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
