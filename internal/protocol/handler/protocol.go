package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/internal/protocol/service"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/httputil"
	"github.com/protocolo/protocolo-backend/pkg/logger"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// ProtocolHandler handles protocol endpoints
type ProtocolHandler struct {
	service *service.ProtocolService
	logger  *logger.Logger
}

// NewProtocolHandler creates a new protocol handler
func NewProtocolHandler(svc *service.ProtocolService, log *logger.Logger) *ProtocolHandler {
	return &ProtocolHandler{
		service: svc,
		logger:  log,
	}
}

// List lists protocols of the tenant, newest first
func (h *ProtocolHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r, defaultPerPage, maxPerPage)

	protocols, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, protocols, httputil.NewMeta(page, perPage, total))
}

// Search filters protocols by numero, nome, status, tipo, lotacao and a
// request date range given as query parameters
func (h *ProtocolHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r, defaultPerPage, maxPerPage)
	q := r.URL.Query()

	params := domain.SearchParams{
		Numero:  strings.TrimSpace(q.Get("numero")),
		Nome:    strings.TrimSpace(q.Get("nome")),
		Status:  strings.TrimSpace(q.Get("status")),
		Tipo:    strings.TrimSpace(q.Get("tipo")),
		Lotacao: strings.TrimSpace(q.Get("lotacao")),
		Page:    page,
		PerPage: perPage,
	}

	invalid := map[string]string{}
	for key, dst := range map[string]**domain.Date{
		"data_inicio": &params.DataInicio,
		"data_fim":    &params.DataFim,
	} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		d, err := domain.ParseDate(raw)
		if err != nil {
			invalid[key] = "must be a date in YYYY-MM-DD format"
			continue
		}
		*dst = &d
	}
	if len(invalid) > 0 {
		httputil.ErrorLocalized(w, r, errors.Validation(invalid))
		return
	}

	protocols, total, err := h.service.Search(r.Context(), params)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, protocols, httputil.NewMeta(page, perPage, total))
}

// Mine lists the protocols the caller is responsible for
func (h *ProtocolHandler) Mine(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r, defaultPerPage, maxPerPage)

	protocols, total, err := h.service.ListMine(r.Context(), page, perPage)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, protocols, httputil.NewMeta(page, perPage, total))
}

// Create creates a protocol
func (h *ProtocolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProtocolRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	p, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, p)
}

// Get gets a protocol by ID
func (h *ProtocolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	p, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Update updates the descriptive fields of a protocol
func (h *ProtocolHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req domain.UpdateProtocolRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	p, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Delete deletes a protocol
func (h *ProtocolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// Move records a status or responsible change
func (h *ProtocolHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req domain.MoveRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	p, err := h.service.Move(r.Context(), id, &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// History lists the movements of a protocol
func (h *ProtocolHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	history, err := h.service.History(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, history)
}

// LastNumero returns the last sequence number used in a year
func (h *ProtocolHandler) LastNumero(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "ano"))
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.Validation(map[string]string{"ano": "must be a four digit year"}))
		return
	}

	last, err := h.service.LastNumero(r.Context(), year)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"ultimo": last})
}

// Stats returns the dashboard counters
func (h *ProtocolHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// Notifications returns how many assigned protocols the caller has not opened
func (h *ProtocolHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Notifications(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"nao_vistos": n})
}

// MarkNotificationsRead marks the caller's protocols as seen
func (h *ProtocolHandler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.MarkNotificationsRead(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"marcados": n})
}
