package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/protocolo/protocolo-backend/internal/protocol/service"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/httputil"
	"github.com/protocolo/protocolo-backend/pkg/logger"
)

// multipartOverhead leaves room for boundaries and form fields around the file.
const multipartOverhead = 1 << 20

// AttachmentHandler handles protocol attachment endpoints
type AttachmentHandler struct {
	service *service.AttachmentService
	logger  *logger.Logger
}

// NewAttachmentHandler creates a new attachment handler
func NewAttachmentHandler(svc *service.AttachmentService, log *logger.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		service: svc,
		logger:  log,
	}
}

// List lists the attachments of a protocol
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	protocoloID, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	attachments, err := h.service.List(r.Context(), protocoloID)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, attachments)
}

// Upload stores the multipart field "file"
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	protocoloID, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	maxSize := h.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		httputil.ErrorLocalized(w, r, errors.Validation(map[string]string{
			"file": fmt.Sprintf("multipart upload of at most %d bytes required", maxSize),
		}))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.Validation(map[string]string{"file": "this field is required"}))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.BadRequest("failed to read uploaded file"))
		return
	}

	a, err := h.service.Upload(r.Context(), protocoloID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, a)
}

// Download streams an attachment
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	protocoloID, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	id, err := httputil.ParamInt64(r, "anexoID")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	a, err := h.service.Get(r.Context(), protocoloID, id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(a.Data)), 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.Data); err != nil {
		h.logger.Warn().Err(err).Int64("attachment_id", id).Msg("failed to write attachment")
	}
}

// Delete deletes an attachment
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	protocoloID, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	id, err := httputil.ParamInt64(r, "anexoID")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), protocoloID, id); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}
