// internal/service/order/infrastructure/push_hub.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"checkout/internal/pkg/logger"
	"checkout/internal/service/order/domain"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub 维护所有活跃的 WebSocket 连接，并把订单结果推送给对应的用户。
type Hub struct {
	clients    map[string]map[*Client]struct{} // 使用UserID作为Key，一个用户可以有多个连接
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	lock       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run 处理连接的注册和注销，直到 ctx 结束。
func (h *Hub) Run(ctx context.Context) {
	log := logger.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.lock.Lock()
			for _, conns := range h.clients {
				for c := range conns {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			h.lock.Unlock()
			return
		case client := <-h.register:
			h.lock.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]struct{})
			}
			h.clients[client.userID][client] = struct{}{}
			h.lock.Unlock()
			log.Debug().Str("user_id", client.userID).Msg("push client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if conns, ok := h.clients[client.userID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.send)
				}
				if len(conns) == 0 {
					delete(h.clients, client.userID)
				}
			}
			h.lock.Unlock()
			log.Debug().Str("user_id", client.userID).Msg("push client unregistered")
		}
	}
}

// Connected 返回用户当前的连接数。
func (h *Hub) Connected(userID string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients[userID])
}

// Publish 实现 port.Notifier。发送缓冲已满的连接会丢弃这条消息。
func (h *Hub) Publish(ctx context.Context, outcome domain.OrderOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return errors.Wrap(err, "marshal order outcome")
	}

	h.lock.RLock()
	defer h.lock.RUnlock()
	for c := range h.clients[outcome.UserID] {
		select {
		case c.send <- payload:
		default:
			logger.Ctx(ctx).Warn().Str("user_id", outcome.UserID).Str("order_id", outcome.OrderID).Msg("push buffer full, dropping message")
		}
	}
	return nil
}

// Attach 把一个已升级的连接交给 Hub 管理，并启动读写 goroutine。
func (h *Hub) Attach(conn *websocket.Conn, userID string) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), userID: userID}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// Client 是一个WebSocket连接的代表
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// writePump 负责将send channel中的消息写入websocket，并定期发送 ping。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理心跳，连接断开时注销客户端。
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
