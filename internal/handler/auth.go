package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tush00nka/phonechat/api/response"
	"tush00nka/phonechat/internal/middleware"
	"tush00nka/phonechat/internal/model"
	"tush00nka/phonechat/internal/pkg/auth"
	"tush00nka/phonechat/internal/pkg/httputils"
	"tush00nka/phonechat/internal/pkg/phone"
	"tush00nka/phonechat/internal/service"
)

type AuthHandler struct {
	authService service.AuthService
	auth        *middleware.Authenticator
	limit       func(http.HandlerFunc) http.HandlerFunc
	phoneLimit  *middleware.Limiter
	secure      bool
	tokenTTL    time.Duration
}

type AuthHandlerOptions struct {
	SecureCookie bool
	TokenTTL     time.Duration
	// RateLimit guards code issuance. Nil lets every request through.
	RateLimit func(http.HandlerFunc) http.HandlerFunc
	// PhoneLimit is a second bucket keyed by the normalized phone number.
	PhoneLimit *middleware.Limiter
}

func NewAuthHandler(authService service.AuthService, authenticator *middleware.Authenticator, opts AuthHandlerOptions) *AuthHandler {
	limit := opts.RateLimit
	if limit == nil {
		limit = func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	return &AuthHandler{
		authService: authService,
		auth:        authenticator,
		limit:       limit,
		phoneLimit:  opts.PhoneLimit,
		secure:      opts.SecureCookie,
		tokenTTL:    opts.TokenTTL,
	}
}

func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/send-code", h.limit(h.sendCode)).Methods("POST", "OPTIONS")
	router.HandleFunc("/auth/verify-code", h.verifyCode).Methods("POST", "OPTIONS")
	router.HandleFunc("/auth/me", h.auth.Wrap(h.me)).Methods("GET", "OPTIONS")
	router.HandleFunc("/auth/logout", h.logout).Methods("POST", "OPTIONS")
}

type SendCodeRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
}

type VerifyCodeRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type UserResponse struct {
	Success bool        `json:"success,omitempty"`
	User    *model.User `json:"user"`
}

// @Summary Send verification code
// @Description Send a one-time login code to the phone number
// @ID send-code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SendCodeRequest true "Phone number"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /auth/send-code [post]
func (h *AuthHandler) sendCode(w http.ResponseWriter, r *http.Request) {
	var request SendCodeRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	if number := phone.Normalize(request.Phone); number != "" && !h.phoneLimit.Check(w, r, number) {
		return
	}

	if err := h.authService.IssueCode(r.Context(), request.Phone); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, response.SuccessResponse{
		Success: true,
		Message: "Verification code sent",
	})
}

// @Summary Verify code
// @Description Redeem a login code, sets the auth-token cookie
// @ID verify-code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyCodeRequest true "Phone number and code"
// @Success 200 {object} UserResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /auth/verify-code [post]
func (h *AuthHandler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var request VerifyCodeRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	user, token, err := h.authService.VerifyCode(r.Context(), request.Phone, request.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setCookie(w, token, int(h.tokenTTL/time.Second))
	httputils.ResponseJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

// @Summary Current user
// @Description Get the signed in user
// @ID me
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	httputils.ResponseJSON(w, http.StatusOK, UserResponse{User: user})
}

// @Summary Logout
// @Description Clear the auth-token cookie
// @ID logout
// @Tags auth
// @Produce json
// @Success 200 {object} response.SuccessResponse
// @Router /auth/logout [post]
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, "", -1)
	httputils.ResponseJSON(w, http.StatusOK, response.SuccessResponse{Success: true})
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
