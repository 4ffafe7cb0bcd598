package handler

import (
	"net/http"

	"github.com/protocolo/protocolo-backend/internal/tenancy/domain"
	"github.com/protocolo/protocolo-backend/internal/tenancy/service"
	"github.com/protocolo/protocolo-backend/pkg/httputil"
	"github.com/protocolo/protocolo-backend/pkg/logger"
)

// TenantHandler serves the super-admin tenant registry endpoints
type TenantHandler struct {
	provisioner *service.Provisioner
	logger      *logger.Logger
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(provisioner *service.Provisioner, log *logger.Logger) *TenantHandler {
	return &TenantHandler{
		provisioner: provisioner,
		logger:      log,
	}
}

// List lists every registered tenant
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.provisioner.List(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tenants)
}

// Create provisions a tenant. It answers 201 for a new tenant and 200 when
// the client code was already registered.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTenantRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	t, existed, err := h.provisioner.Create(r.Context(), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	result := domain.ProvisionResult{Tenant: t, AlreadyExisted: existed}
	if existed {
		httputil.JSON(w, http.StatusOK, result)
		return
	}
	httputil.Created(w, result)
}

// Delete removes a tenant and its schema
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := h.provisioner.Delete(r.Context(), id); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// SetStatus activates or deactivates a tenant
func (h *TenantHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParamInt64(r, "id")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req domain.SetActiveRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	t, err := h.provisioner.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}
