package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"checkout/internal/service/order/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPushesOutcomeToUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(conn, r.URL.Query().Get("userId"))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"?userId=user-1", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected("user-1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(ctx, domain.OrderOutcome{EventType: domain.EventOrderConfirmed, OrderID: "order-1", UserID: "user-1"}))
	require.NoError(t, hub.Publish(ctx, domain.OrderOutcome{EventType: domain.EventOrderConfirmed, OrderID: "order-2", UserID: "user-2"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var got domain.OrderOutcome
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "order-1", got.OrderID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Connected("user-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
