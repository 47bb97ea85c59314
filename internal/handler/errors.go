package handler

import (
	"errors"
	"log"
	"net/http"

	"tush00nka/phonechat/internal/pkg/httputils"
	"tush00nka/phonechat/internal/service"
)

// writeServiceError maps a service error onto an HTTP status and body.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httputils.ResponseError(w, http.StatusBadRequest, verr.Message)
	case service.IsClientError(err):
		httputils.ResponseError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		httputils.ResponseError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrReceiverNotFound), errors.Is(err, service.ErrUserNotFound):
		httputils.ResponseError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDispatch):
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		httputils.ResponseError(w, http.StatusInternalServerError, "Failed to send verification code")
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		httputils.ResponseError(w, http.StatusInternalServerError, "Internal server error")
	}
}
