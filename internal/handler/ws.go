package handler

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"tush00nka/phonechat/internal/middleware"
	"tush00nka/phonechat/internal/ws"
)

type WSHandler struct {
	hub      *ws.Hub
	upgrader *websocket.Upgrader
	auth     *middleware.Authenticator
}

func NewWSHandler(hub *ws.Hub, upgrader *websocket.Upgrader, authenticator *middleware.Authenticator) *WSHandler {
	return &WSHandler{hub: hub, upgrader: upgrader, auth: authenticator}
}

func (h *WSHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.auth.Wrap(h.serve)).Methods("GET")
}

// @Summary Realtime feed
// @Description Websocket of conversation events. Send {"type":"subscribe","with":"<userId>"} to follow more conversations.
// @ID ws
// @Tags realtime
// @Param with query string false "Conversation partner to subscribe to"
// @Success 101
// @Failure 401 {object} response.ErrorResponse
// @Router /ws [get]
func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request) {
	me, _ := middleware.UserFromContext(r.Context())

	if err := h.hub.Serve(h.upgrader, w, r, me.ID, r.URL.Query().Get("with")); err != nil {
		log.Printf("Websocket upgrade failed for %s: %v", me.ID, err)
	}
}
