package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/protocolo/protocolo-backend/internal/staff/service"
	"github.com/protocolo/protocolo-backend/pkg/httputil"
	"github.com/protocolo/protocolo-backend/pkg/logger"
)

// ServidorHandler handles staff directory endpoints
type ServidorHandler struct {
	service *service.StaffService
	logger  *logger.Logger
}

// NewServidorHandler creates a new staff directory handler
func NewServidorHandler(svc *service.StaffService, log *logger.Logger) *ServidorHandler {
	return &ServidorHandler{
		service: svc,
		logger:  log,
	}
}

// Search answers GET /servidores?nome=
func (h *ServidorHandler) Search(w http.ResponseWriter, r *http.Request) {
	servidores, err := h.service.Search(r.Context(), r.URL.Query().Get("nome"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, servidores)
}

// Get answers GET /servidores/{matricula}
func (h *ServidorHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetByMatricula(r.Context(), chi.URLParam(r, "matricula"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, s)
}
