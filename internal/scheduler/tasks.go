package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskRoutingQueueDrain = "routing.queue.drain"

type RoutingQueueDrainPayload struct {
	TenantID  string `json:"tenantId"`
	BatchSize int    `json:"batchSize,omitempty"`
}

func NewRoutingQueueDrainTask(payload RoutingQueueDrainPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoutingQueueDrain, data), nil
}

func ParseRoutingQueueDrainPayload(task *asynq.Task) (RoutingQueueDrainPayload, error) {
	var payload RoutingQueueDrainPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RoutingQueueDrainPayload{}, err
	}
	return payload, nil
}
