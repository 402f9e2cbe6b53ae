// Package app wires the workflow engine, its collaborators, and their
// lifecycle together.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/swiftel/request-handler/internal/app/realtime"
	"github.com/swiftel/request-handler/internal/app/services/notifications"
	"github.com/swiftel/request-handler/internal/app/services/users"
	"github.com/swiftel/request-handler/internal/app/services/workflow"
	"github.com/swiftel/request-handler/internal/app/storage"
	"github.com/swiftel/request-handler/internal/app/storage/memory"
	"github.com/swiftel/request-handler/internal/app/system"
	"github.com/swiftel/request-handler/internal/auth"
	"github.com/swiftel/request-handler/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Requests      storage.RequestStore
	Decisions     storage.DecisionStore
	Notifications storage.NotificationStore
	Users         storage.UserStore
	Tx            storage.TxRunner
}

// Options tunes optional application behaviour.
type Options struct {
	// RelayInterval overrides the notification relay sweep interval.
	RelayInterval time.Duration
	// CheckOrigin guards websocket upgrades; nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Workflow      *workflow.Service
	Notifications *notifications.Service
	Users         *users.Service
	Hub           *realtime.Hub
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, issuer *auth.Issuer, log *logger.Logger, opts Options) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Requests == nil {
		stores.Requests = mem
	}
	if stores.Decisions == nil {
		stores.Decisions = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Tx == nil {
		stores.Tx = mem
	}

	hub := realtime.New(issuer, opts.CheckOrigin, log)
	dispatcher := notifications.NewDispatcher(stores.Notifications, hub, log)

	workflowSvc := workflow.New(stores.Tx, stores.Requests, stores.Decisions, stores.Users, log)
	workflowSvc.AttachDispatcher(dispatcher)

	notificationSvc := notifications.New(stores.Notifications, log)
	userSvc := users.New(stores.Users, issuer, log)

	manager := system.NewManager()
	relay := notifications.NewRelay(stores.Notifications, hub, log)
	if opts.RelayInterval > 0 {
		relay.WithInterval(opts.RelayInterval)
	}
	if err := manager.Register(relay); err != nil {
		return nil, fmt.Errorf("register %s: %w", relay.Name(), err)
	}

	return &Application{
		manager:       manager,
		log:           log,
		Workflow:      workflowSvc,
		Notifications: notificationSvc,
		Users:         userSvc,
		Hub:           hub,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all background services and drops live connections.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	a.Hub.Close()
	return err
}
