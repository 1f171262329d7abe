// internal/service/order/interfaces/ws_handler.go
package interfaces

import (
	"net/http"

	"checkout/internal/pkg/logger"
	"checkout/internal/service/order/infrastructure"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// PushHandler 把 HTTP 连接升级为 WebSocket，推送该用户的订单结果。
type PushHandler struct {
	hub *infrastructure.Hub
}

func NewPushHandler(hub *infrastructure.Hub) *PushHandler {
	return &PushHandler{hub: hub}
}

func (h *PushHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.serveWs)
}

func (h *PushHandler) serveWs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.hub.Attach(conn, userID)
}
