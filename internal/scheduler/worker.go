package scheduler

import (
	"context"
	"fmt"

	"crm_routing_backend/internal/routing/service"
	"crm_routing_backend/platform/config"
	"crm_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	routing *service.Service
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, routing *service.Service, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		routing: routing,
		log:     log,
	}

	mux.HandleFunc(TaskRoutingQueueDrain, w.handleQueueDrain)

	return w, nil
}

func (w *Worker) handleQueueDrain(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRoutingQueueDrainPayload(task)
	if err != nil {
		return err
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return err
	}

	report, err := w.routing.ProcessRoutingQueue(ctx, tenantID, payload.BatchSize)
	if err != nil {
		return err
	}

	w.log.Info("routing queue drained",
		"tenant_id", tenantID.String(),
		"claimed", report.Claimed,
		"assigned", report.Assigned,
		"retried", report.Retried,
		"failed", report.Failed,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
