package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authhandler "github.com/protocolo/protocolo-backend/internal/auth/handler"
	"github.com/protocolo/protocolo-backend/internal/auth/jwt"
	authrepo "github.com/protocolo/protocolo-backend/internal/auth/repository"
	authservice "github.com/protocolo/protocolo-backend/internal/auth/service"
	protocolevents "github.com/protocolo/protocolo-backend/internal/protocol/events"
	protocolhandler "github.com/protocolo/protocolo-backend/internal/protocol/handler"
	protocolrepo "github.com/protocolo/protocolo-backend/internal/protocol/repository"
	protocolservice "github.com/protocolo/protocolo-backend/internal/protocol/service"
	"github.com/protocolo/protocolo-backend/internal/staff/consumers"
	staffhandler "github.com/protocolo/protocolo-backend/internal/staff/handler"
	staffrepo "github.com/protocolo/protocolo-backend/internal/staff/repository"
	staffservice "github.com/protocolo/protocolo-backend/internal/staff/service"
	tenancyevents "github.com/protocolo/protocolo-backend/internal/tenancy/events"
	tenancyhandler "github.com/protocolo/protocolo-backend/internal/tenancy/handler"
	tenancyrepo "github.com/protocolo/protocolo-backend/internal/tenancy/repository"
	tenancyservice "github.com/protocolo/protocolo-backend/internal/tenancy/service"
	userhandler "github.com/protocolo/protocolo-backend/internal/user/handler"
	userrepo "github.com/protocolo/protocolo-backend/internal/user/repository"
	userservice "github.com/protocolo/protocolo-backend/internal/user/service"
	"github.com/protocolo/protocolo-backend/pkg/config"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/messaging"
	"github.com/protocolo/protocolo-backend/pkg/metrics"
)

const serviceName = "protocolo-api"

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Protocolo API")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if m != nil {
		db.ObserveSchemaResets(m.SchemaResetFails)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// RabbitMQ is optional; without it events are dropped and the
	// directory feed is not consumed.
	var rmq *messaging.RabbitMQ
	var tenantPub, protocolPub messaging.EventPublisher = messaging.NopPublisher{}, messaging.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
			log.Fatal().Err(err).Msg("failed to declare dead letter queue")
		}
		if tenantPub, err = messaging.NewPublisher(rmq, messaging.ExchangeTenantEvents, serviceName, log); err != nil {
			log.Fatal().Err(err).Msg("failed to create tenant event publisher")
		}
		if protocolPub, err = messaging.NewPublisher(rmq, messaging.ExchangeProtocolEvents, serviceName, log); err != nil {
			log.Fatal().Err(err).Msg("failed to create protocol event publisher")
		}
	}

	// Initialize repositories
	registry := tenancyrepo.NewRegistryRepository(db)
	credentials := authrepo.NewCredentialRepository(db)
	protocols := protocolrepo.NewProtocolRepository(db)
	history := protocolrepo.NewHistoryRepository(db)
	attachments := protocolrepo.NewAttachmentRepository(db)
	servidores := staffrepo.NewServidorRepository(db)
	users := userrepo.NewUserRepository(db)

	// Initialize services
	jwtManager := jwt.NewManager(&cfg.JWT)
	authenticator := authservice.NewAuthenticator(db, registry, credentials, jwtManager, cfg.SuperAdmin, m, log)
	provisioner := tenancyservice.NewProvisioner(db, registry, tenancyevents.NewTenantEventPublisher(tenantPub, log), m, log)
	locator := tenancyservice.NewLocator(db, registry, protocols, m, log)
	protocolService := protocolservice.NewProtocolService(db, protocols, history, attachments,
		protocolevents.NewProtocolEventPublisher(protocolPub, log), log)
	if err := provisioner.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap tenant registry")
	}
	attachmentService := protocolservice.NewAttachmentService(db, protocols, attachments, cfg.Uploads.MaxFileSize, log)
	staffService := staffservice.NewStaffService(servidores, log)
	userService := userservice.NewUserService(users, log)

	// Start the directory feed consumer
	if rmq != nil {
		consumer, err := messaging.NewConsumer(rmq, consumers.QueueName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create consumer")
		}
		directory := consumers.NewDirectoryConsumer(db, registry, staffService, m, log)
		if err := directory.Register(consumer); err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe to directory feed")
		}
		if err := consumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start consumer")
		}
	}

	// Initialize handlers
	h := &handlers{
		auth:        authhandler.NewAuthHandler(authenticator, log),
		middleware:  authhandler.NewMiddleware(jwtManager, registry, log),
		tenants:     tenancyhandler.NewTenantHandler(provisioner, log),
		lookup:      tenancyhandler.NewLookupHandler(locator),
		protocols:   protocolhandler.NewProtocolHandler(protocolService, log),
		attachments: protocolhandler.NewAttachmentHandler(attachmentService, log),
		staff:       staffhandler.NewServidorHandler(staffService, log),
		users:       userhandler.NewUserHandler(userService, log),
	}

	router := newRouter(h, routerOptions{
		db:             db,
		rmq:            rmq,
		metrics:        m,
		metricsPath:    cfg.Metrics.Path,
		allowedOrigins: cfg.Server.AllowedOrigins,
		requestTimeout: cfg.Server.RequestTimeout,
		logger:         log,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
