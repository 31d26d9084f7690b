// Package routing provides the lead routing and assignment bounded context
// module: scoring, rule evaluation, strategy dispatch, workload tracking,
// and the retryable assignment queue.
package routing

import (
	"crm_routing_backend/internal/directory"
	apphttp "crm_routing_backend/internal/http"
	"crm_routing_backend/internal/routing/engine"
	"crm_routing_backend/internal/routing/handler"
	"crm_routing_backend/internal/routing/repository"
	"crm_routing_backend/internal/routing/service"
	"crm_routing_backend/internal/routing/strategy"
	"crm_routing_backend/internal/routing/workload"
	"crm_routing_backend/platform/config"
	"crm_routing_backend/platform/events"
	"crm_routing_backend/platform/logger"
	"crm_routing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the routing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// Options carries the optional collaborators main may or may not wire.
type Options struct {
	// Redis backs the round-robin cursors; nil falls back to in-process
	// cursors (single instance only).
	Redis redis.UniversalClient
	// Scheduler requests future queue drains; nil disables targeted
	// retries, leaving the periodic drain as the only trigger.
	Scheduler service.RetryScheduler
}

// NewModule creates and initializes the routing module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger, opts Options) *Module {
	repo := repository.New(pool)

	var cursors strategy.CursorStore
	if opts.Redis != nil {
		cursors = strategy.NewRedisCursorStore(opts.Redis)
	} else {
		cursors = strategy.NewMemoryCursorStore()
	}

	tracker := workload.NewTracker(repo, cfg.GetWorkloadDefaultCapacity(), log)
	dispatcher := strategy.NewDispatcher(cursors, tracker, log)

	svc := service.New(service.Deps{
		Rules:      repo,
		Leads:      repo,
		Queue:      repo,
		History:    repo,
		Workloads:  repo,
		Tracker:    tracker,
		Engine:     engine.New(log),
		Dispatcher: dispatcher,
		Directory:  directory.New(pool),
		Scheduler:  opts.Scheduler,
		Bus:        eventBus,
		Config:     cfg,
		Logger:     log,
	})

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "routing"
}

// Service returns the routing service for external use (scheduler worker).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the routing endpoints. All routes require
// authentication; rule and workload administration additionally requires
// the admin role.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/routing"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/routing"))
}
