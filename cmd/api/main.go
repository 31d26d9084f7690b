package main

import (
	"context"
	"crypto/tls"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	domainevents "crm_routing_backend/internal/events"
	apphttp "crm_routing_backend/internal/http"
	"crm_routing_backend/internal/http/router"
	"crm_routing_backend/internal/routing"
	"crm_routing_backend/internal/scheduler"
	"crm_routing_backend/platform/config"
	"crm_routing_backend/platform/db"
	"crm_routing_backend/platform/events"
	"crm_routing_backend/platform/logger"
	"crm_routing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, cfg.MigrationsDir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	subscribeEventLogging(eventBus, log)

	// Shared validator instance for dependency injection
	val := validator.New()

	redisClient := initRedis(cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	retryScheduler, closeScheduler := initRetryScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	routingModule := routing.NewModule(pool, eventBus, val, cfg, log, routing.Options{
		Redis:     redisClient,
		Scheduler: retryScheduler,
	})

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			routingModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// subscribeEventLogging records every routing outcome on the application log.
// Downstream consumers (notifications, analytics) subscribe the same way.
func subscribeEventLogging(bus *events.InMemoryBus, log *logger.Logger) {
	logEvent := events.HandlerFunc(func(_ context.Context, event events.Event) error {
		log.Info("domain event", "event", event.EventName(), "event_id", event.EventID(), "occurred_at", event.OccurredAt())
		return nil
	})
	for _, name := range []string{
		domainevents.LeadAssigned{}.EventName(),
		domainevents.LeadReassigned{}.EventName(),
		domainevents.LeadRoutingQueued{}.EventName(),
		domainevents.LeadRoutingFailed{}.EventName(),
	} {
		bus.Subscribe(name, logEvent)
	}
}

// initRedis builds the shared redis client backing the round-robin cursors.
// Optional: without it, cursors are process-local and round-robin fairness
// only holds within a single instance.
func initRedis(cfg *config.Config, log *logger.Logger) redis.UniversalClient {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not configured; round-robin cursors are process-local")
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		return nil
	}
	if cfg.RedisTLSInsecure {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		} else {
			opt.TLSConfig.InsecureSkipVerify = true
		}
	}
	return redis.NewClient(opt)
}

func initRetryScheduler(cfg *config.Config, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not configured; queue retries rely on the periodic drain only")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize retry scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
