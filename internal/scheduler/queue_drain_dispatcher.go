package scheduler

import (
	"context"
	"fmt"
	"time"

	"crm_routing_backend/internal/routing/repository"
	"crm_routing_backend/platform/config"
	"crm_routing_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// QueueDrainDispatcher periodically scans for tenants with due Pending
// routing entries and enqueues a drain task per tenant. This is the safety
// net behind the targeted ProcessIn schedules the routing service requests:
// even if a scheduled drain is lost, entries are picked up within one tick.
type QueueDrainDispatcher struct {
	client    *asynq.Client
	queue     string
	repo      *repository.Repository
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

// DrainConfig combines the scheduler and routing config the dispatcher reads.
type DrainConfig interface {
	config.SchedulerConfig
	config.RoutingConfig
}

func NewQueueDrainDispatcher(cfg DrainConfig, pool *pgxpool.Pool, log *logger.Logger) (*QueueDrainDispatcher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	interval := cfg.GetRoutingDrainInterval()
	if interval <= 0 {
		interval = time.Minute
	}

	return &QueueDrainDispatcher{
		client:    asynq.NewClient(opt),
		queue:     queue,
		repo:      repository.New(pool),
		interval:  interval,
		batchSize: cfg.GetRoutingBatchSize(),
		log:       log,
	}, nil
}

func (d *QueueDrainDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *QueueDrainDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tenants, err := d.repo.ListTenantsWithDuePending(ctx, 100)
		if err != nil {
			d.log.Warn("drain dispatch scan failed", "error", err)
			continue
		}
		if len(tenants) == 0 {
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(8)
		for _, tenantID := range tenants {
			tenantID := tenantID
			g.Go(func() error {
				task, err := NewRoutingQueueDrainTask(RoutingQueueDrainPayload{
					TenantID:  tenantID.String(),
					BatchSize: d.batchSize,
				})
				if err != nil {
					return err
				}
				_, err = d.client.EnqueueContext(gctx, task, asynq.Queue(d.queue))
				return err
			})
		}
		if err := g.Wait(); err != nil {
			d.log.Warn("drain dispatch enqueue failed", "error", err)
		}
	}
}
