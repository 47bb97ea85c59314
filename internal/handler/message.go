package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"tush00nka/phonechat/internal/middleware"
	"tush00nka/phonechat/internal/model"
	"tush00nka/phonechat/internal/pkg/httputils"
	"tush00nka/phonechat/internal/service"
)

type MessageHandler struct {
	messageService service.MessageService
	auth           *middleware.Authenticator
}

func NewMessageHandler(messageService service.MessageService, authenticator *middleware.Authenticator) *MessageHandler {
	return &MessageHandler{messageService: messageService, auth: authenticator}
}

func (h *MessageHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/messages", h.auth.Wrap(h.getMessages)).Methods("GET", "OPTIONS")
	router.HandleFunc("/messages", h.auth.Wrap(h.sendMessage)).Methods("POST")
}

type SendMessageRequest struct {
	Text       string `json:"text" validate:"max=4000"`
	ReceiverID string `json:"receiverId" validate:"required,max=36"`
	MediaURL   string `json:"mediaUrl" validate:"omitempty,max=2048"`
	MediaType  string `json:"mediaType" validate:"omitempty,oneof=image video"`
}

type MessagesResponse struct {
	Messages []model.Message `json:"messages"`
}

type MessageResponse struct {
	Message *model.Message `json:"message"`
}

// @Summary Conversation
// @Description The latest 100 messages between the signed in user and receiverId, oldest first
// @ID get-messages
// @Tags messages
// @Produce json
// @Param receiverId query string true "Conversation partner"
// @Success 200 {object} MessagesResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /messages [get]
func (h *MessageHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	me, _ := middleware.UserFromContext(r.Context())

	messages, err := h.messageService.ListConversation(r.Context(), me.ID, r.URL.Query().Get("receiverId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, MessagesResponse{Messages: messages})
}

// @Summary Send message
// @Description Send a text and/or media message
// @ID send-message
// @Tags messages
// @Accept json
// @Produce json
// @Param request body SendMessageRequest true "Message"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	me, _ := middleware.UserFromContext(r.Context())

	var request SendMessageRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	message, err := h.messageService.Send(r.Context(), me.ID, service.SendMessageInput{
		Text:       request.Text,
		ReceiverID: request.ReceiverID,
		MediaURL:   request.MediaURL,
		MediaType:  request.MediaType,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, MessageResponse{Message: message})
}
