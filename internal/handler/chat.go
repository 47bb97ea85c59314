package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"tush00nka/phonechat/internal/middleware"
	"tush00nka/phonechat/internal/pkg/httputils"
	"tush00nka/phonechat/internal/service"
)

type ChatHandler struct {
	messageService service.MessageService
	auth           *middleware.Authenticator
}

func NewChatHandler(messageService service.MessageService, authenticator *middleware.Authenticator) *ChatHandler {
	return &ChatHandler{messageService: messageService, auth: authenticator}
}

func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/chats/delete", h.auth.Wrap(h.deleteChat)).Methods("DELETE", "OPTIONS")
}

type DeleteChatResponse struct {
	Success      bool  `json:"success"`
	DeletedCount int64 `json:"deletedCount"`
}

// @Summary Delete conversation
// @Description Delete every message between the signed in user and userId, both directions
// @ID delete-chat
// @Tags chats
// @Produce json
// @Param userId query string true "Conversation partner"
// @Success 200 {object} DeleteChatResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /chats/delete [delete]
func (h *ChatHandler) deleteChat(w http.ResponseWriter, r *http.Request) {
	me, _ := middleware.UserFromContext(r.Context())

	n, err := h.messageService.DeleteConversation(r.Context(), me.ID, r.URL.Query().Get("userId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, DeleteChatResponse{Success: true, DeletedCount: n})
}
