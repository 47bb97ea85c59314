package ws

import (
	"context"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
)

// NewUpgrader принимает соединения с разрешенных origins, при allowAll с любых
func NewUpgrader(allowedOrigins []string, allowAll bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}
}

// Serve переводит запрос на websocket и обслуживает соединение до закрытия.
// Если with задан, соединение сразу подписано на эту переписку.
func (h *Hub) Serve(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, userID, with string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.Errors.Inc()
		return err
	}

	client := NewClient(context.Background(), conn, userID)
	h.Register(r.Context(), client)

	if with != "" {
		if _, err := h.Subscribe(client, with); err != nil {
			client.SendJSON(OutEvent{Type: FrameError, With: with, Message: err.Error()})
		} else {
			client.SendJSON(OutEvent{Type: FrameSubscribed, With: with})
		}
	}

	go func() {
		if err := client.WritePump(); err != nil {
			h.metrics.Errors.Inc()
		}
	}()

	client.ReadPump(h.handleIncoming, func() {
		h.refreshPresence(context.Background(), client)
	})
	h.Unregister(context.Background(), client)
	return nil
}
