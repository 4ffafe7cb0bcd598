// Command tenantctl provisions and manages tenant schemas from the shell.
package main

import (
	"fmt"
	"os"

	tenancyevents "github.com/protocolo/protocolo-backend/internal/tenancy/events"
	tenancyrepo "github.com/protocolo/protocolo-backend/internal/tenancy/repository"
	tenancyservice "github.com/protocolo/protocolo-backend/internal/tenancy/service"
	userrepo "github.com/protocolo/protocolo-backend/internal/user/repository"
	userservice "github.com/protocolo/protocolo-backend/internal/user/service"
	"github.com/protocolo/protocolo-backend/pkg/config"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/messaging"
)

const serviceName = "tenantctl"

func main() {
	root, closeApp := newRootCommand(connect)
	err := root.Execute()
	closeApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect builds the app from configuration. Tenant events are published
// only when RabbitMQ is enabled.
func connect() (*app, error) {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(serviceName, cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closers := []func() error{db.Close}

	var pub messaging.EventPublisher = messaging.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		rmq, err := messaging.New(&cfg.RabbitMQ, serviceName, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		closers = append(closers, rmq.Close)
		if pub, err = messaging.NewPublisher(rmq, messaging.ExchangeTenantEvents, serviceName, log); err != nil {
			rmq.Close()
			db.Close()
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
	}

	registry := tenancyrepo.NewRegistryRepository(db)
	return &app{
		db:          db,
		provisioner: tenancyservice.NewProvisioner(db, registry, tenancyevents.NewTenantEventPublisher(pub, log), nil, log),
		users:       userservice.NewUserService(userrepo.NewUserRepository(db), log),
		closers:     closers,
	}, nil
}
