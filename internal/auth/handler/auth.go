package handler

import (
	"net/http"

	"github.com/protocolo/protocolo-backend/internal/auth/service"
	"github.com/protocolo/protocolo-backend/pkg/actor"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/httputil"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/permissions"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service *service.Authenticator
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *service.Authenticator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  log,
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	response, err := h.service.Login(r.Context(), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, response)
}

// MeResponse describes the caller as seen by the server
type MeResponse struct {
	*actor.Actor
	ClientCode  string   `json:"client_code,omitempty"`
	Permissions []string `json:"permissions"`
}

// Me returns the current principal, taken from the verified token
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	a := actor.FromContext(r.Context())
	if a == nil {
		httputil.ErrorLocalized(w, r, errors.Unauthorized("not authenticated"))
		return
	}

	code, _ := tenant.ClientCode(r.Context())
	httputil.JSON(w, http.StatusOK, MeResponse{
		Actor:       a,
		ClientCode:  code,
		Permissions: permissions.ForRole(a.Role),
	})
}
