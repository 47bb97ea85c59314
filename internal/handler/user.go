package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"tush00nka/phonechat/internal/middleware"
	"tush00nka/phonechat/internal/model"
	"tush00nka/phonechat/internal/pkg/httputils"
	"tush00nka/phonechat/internal/service"
)

type UserHandler struct {
	userService service.UserService
	auth        *middleware.Authenticator
}

func NewUserHandler(userService service.UserService, authenticator *middleware.Authenticator) *UserHandler {
	return &UserHandler{userService: userService, auth: authenticator}
}

func (h *UserHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.auth.Wrap(h.listUsers)).Methods("GET", "OPTIONS")
	router.HandleFunc("/users/me", h.auth.Wrap(h.updateMe)).Methods("PATCH", "OPTIONS")
}

type UsersResponse struct {
	Users []model.Partner `json:"users"`
}

type UpdateNameRequest struct {
	Name *string `json:"name" validate:"omitempty,max=200"`
}

// @Summary List chat partners
// @Description Users the requester has talked to, newest first, or users matching search
// @ID list-users
// @Tags users
// @Produce json
// @Param search query string false "Phone or name substring"
// @Success 200 {object} UsersResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /users [get]
func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	me, _ := middleware.UserFromContext(r.Context())

	partners, err := h.userService.Partners(r.Context(), me.ID, r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if partners == nil {
		partners = []model.Partner{}
	}

	httputils.ResponseJSON(w, http.StatusOK, UsersResponse{Users: partners})
}

// @Summary Rename
// @Description Set or clear the display name of the signed in user
// @ID update-me
// @Tags users
// @Accept json
// @Produce json
// @Param request body UpdateNameRequest true "New name, null clears it"
// @Success 200 {object} UserResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /users/me [patch]
func (h *UserHandler) updateMe(w http.ResponseWriter, r *http.Request) {
	me, _ := middleware.UserFromContext(r.Context())

	var request UpdateNameRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	user, err := h.userService.UpdateName(r.Context(), me.ID, request.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, UserResponse{User: user})
}
