package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	protocoldomain "github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/internal/tenancy/service"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/httputil"
)

// LookupHandler serves the unauthenticated protocol lookup
type LookupHandler struct {
	locator *service.Locator
}

// NewLookupHandler creates a new lookup handler
func NewLookupHandler(locator *service.Locator) *LookupHandler {
	return &LookupHandler{locator: locator}
}

// Find answers GET /consulta/{ano}/{numero} with the public fields of the
// protocol numero/ano and the name of the organization holding it.
func (h *LookupHandler) Find(w http.ResponseWriter, r *http.Request) {
	numero := chi.URLParam(r, "numero") + "/" + chi.URLParam(r, "ano")
	if !httputil.NumeroPattern.MatchString(numero) {
		httputil.ErrorLocalized(w, r, errors.NotFound("protocol"))
		return
	}

	p, t, err := h.locator.FindProtocol(r.Context(), numero)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, protocoldomain.NewPublicView(p, t.Name))
}
