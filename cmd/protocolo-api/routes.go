package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	authhandler "github.com/protocolo/protocolo-backend/internal/auth/handler"
	protocolhandler "github.com/protocolo/protocolo-backend/internal/protocol/handler"
	staffhandler "github.com/protocolo/protocolo-backend/internal/staff/handler"
	tenancyhandler "github.com/protocolo/protocolo-backend/internal/tenancy/handler"
	userhandler "github.com/protocolo/protocolo-backend/internal/user/handler"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/httputil"
	"github.com/protocolo/protocolo-backend/pkg/i18n"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/messaging"
	"github.com/protocolo/protocolo-backend/pkg/metrics"
	"github.com/protocolo/protocolo-backend/pkg/permissions"
)

// handlers groups everything the router dispatches to
type handlers struct {
	auth        *authhandler.AuthHandler
	middleware  *authhandler.Middleware
	tenants     *tenancyhandler.TenantHandler
	lookup      *tenancyhandler.LookupHandler
	protocols   *protocolhandler.ProtocolHandler
	attachments *protocolhandler.AttachmentHandler
	staff       *staffhandler.ServidorHandler
	users       *userhandler.UserHandler
}

// routerOptions carries the ambient pieces of the router
type routerOptions struct {
	db             *database.DB
	rmq            *messaging.RabbitMQ
	metrics        *metrics.Metrics
	metricsPath    string
	allowedOrigins []string
	requestTimeout time.Duration
	logger         *logger.Logger
}

func newRouter(h *handlers, opts routerOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(opts.metrics.Middleware)
	r.Use(httputil.Logger(opts.logger))
	r.Use(httputil.Recoverer(opts.logger))
	r.Use(i18n.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Language"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if opts.requestTimeout > 0 {
		r.Use(middleware.Timeout(opts.requestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": opts.db.Health(r.Context()),
		}
		if opts.rmq != nil {
			status["rabbitmq"] = opts.rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})
	if opts.metrics != nil {
		r.Handle(opts.metricsPath, opts.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Post("/auth/login", h.auth.Login)
		r.Get("/consulta/{ano}/{numero}", h.lookup.Find)

		r.Group(func(r chi.Router) {
			r.Use(h.middleware.Authenticate)

			r.Get("/auth/me", h.auth.Me)

			r.Route("/admin/tenants", func(r chi.Router) {
				r.Use(authhandler.RequireSuperAdmin)
				r.Get("/", h.tenants.List)
				r.Post("/", h.tenants.Create)
				r.Delete("/{id}", h.tenants.Delete)
				r.Patch("/{id}/status", h.tenants.SetStatus)
			})

			r.Group(func(r chi.Router) {
				r.Use(authhandler.RequireTenant)

				r.Route("/protocolos", func(r chi.Router) {
					read := authhandler.RequirePermission(permissions.ProtocolsRead)

					r.With(read).Get("/", h.protocols.List)
					r.With(authhandler.RequirePermission(permissions.ProtocolsCreate)).Post("/", h.protocols.Create)
					r.With(read).Get("/meus", h.protocols.Mine)
					r.With(read).Get("/pesquisa", h.protocols.Search)
					r.With(read).Get("/ultimo-numero/{ano}", h.protocols.LastNumero)
					r.With(read).Get("/estatisticas", h.protocols.Stats)
					r.With(read).Get("/notificacoes", h.protocols.Notifications)
					r.With(read).Post("/notificacoes/lidas", h.protocols.MarkNotificationsRead)

					r.Route("/{id}", func(r chi.Router) {
						r.With(read).Get("/", h.protocols.Get)
						r.With(authhandler.RequirePermission(permissions.ProtocolsUpdate)).Put("/", h.protocols.Update)
						r.With(authhandler.RequirePermission(permissions.ProtocolsDelete)).Delete("/", h.protocols.Delete)
						r.With(read).Get("/historico", h.protocols.History)
						r.With(authhandler.RequirePermission(permissions.ProtocolsMove)).Post("/movimentacoes", h.protocols.Move)

						r.With(authhandler.RequirePermission(permissions.AttachmentsRead)).Get("/anexos", h.attachments.List)
						r.With(authhandler.RequirePermission(permissions.AttachmentsCreate)).Post("/anexos", h.attachments.Upload)
						r.With(authhandler.RequirePermission(permissions.AttachmentsRead)).Get("/anexos/{anexoID}", h.attachments.Download)
						r.With(authhandler.RequirePermission(permissions.AttachmentsDelete)).Delete("/anexos/{anexoID}", h.attachments.Delete)
					})
				})

				r.Route("/servidores", func(r chi.Router) {
					r.Use(authhandler.RequirePermission(permissions.StaffRead))
					r.Get("/", h.staff.Search)
					r.Get("/{matricula}", h.staff.Get)
				})

				r.Route("/usuarios", func(r chi.Router) {
					r.Use(authhandler.RequirePermission(permissions.UsersManage))
					r.Get("/", h.users.List)
					r.Post("/", h.users.Create)
				})
			})
		})
	})

	return r
}
