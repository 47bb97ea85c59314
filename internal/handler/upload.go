package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tush00nka/phonechat/internal/middleware"
	"tush00nka/phonechat/internal/pkg/httputils"
	"tush00nka/phonechat/internal/service"
)

const (
	multipartMemory = 8 << 20
	uploadTimeout   = 2 * time.Minute
)

type UploadHandler struct {
	uploadService service.UploadService
	auth          *middleware.Authenticator
}

func NewUploadHandler(uploadService service.UploadService, authenticator *middleware.Authenticator) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, auth: authenticator}
}

func (h *UploadHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/upload", h.auth.Wrap(h.upload)).Methods("POST", "OPTIONS")
}

// @Summary Upload media
// @Description Upload an image or video of at most 50 MB
// @ID upload
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image or video"
// @Success 200 {object} model.FileMetadata
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /upload [post]
func (h *UploadHandler) upload(w http.ResponseWriter, r *http.Request) {
	me, _ := middleware.UserFromContext(r.Context())

	// Server wide timeouts are too short for large media.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Now().Add(uploadTimeout))
	_ = rc.SetWriteDeadline(time.Now().Add(uploadTimeout))

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, service.ErrFileTooLarge)
			return
		}
		httputils.ResponseError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	meta, err := h.uploadService.Upload(r.Context(), me.ID, service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, meta)
}
