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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	subscribeEventLogging(eventBus, log)
	val := validator.New()

	retryClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = retryClient.Close() }()

	// Worker-side routing wiring (no HTTP handlers required). Round-robin
	// cursors must be shared with the API instances, so Redis is mandatory
	// here; NewClient above already required REDIS_URL.
	redisClient := mustRedis(cfg, log)
	defer func() { _ = redisClient.Close() }()

	routingModule := routing.NewModule(pool, eventBus, val, cfg, log, routing.Options{
		Redis:     redisClient,
		Scheduler: retryClient,
	})

	dispatcher, err := scheduler.NewQueueDrainDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize drain dispatcher", "error", err)
		panic("failed to initialize drain dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, routingModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

// subscribeEventLogging records every routing outcome on the worker log.
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

func mustRedis(cfg *config.Config, log *logger.Logger) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		panic("failed to parse redis url: " + err.Error())
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
