// Package worker adapts the separation pipeline to the asynq task queue for
// deployments running the redis queue driver.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"github.com/stemsplit/api/internal/model"
	"github.com/stemsplit/api/internal/service"
)

const TaskTypeSeparation = "separation:process"

type taskPayload struct {
	FileID string                 `json:"fileId"`
	Params model.SeparationParams `json:"params"`
}

// AsynqDispatcher enqueues claimed jobs onto the separation queue.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

// Dispatch enqueues one task for the claimed job. Retries are disabled: the
// job record owns failure state and a failed run is reported exactly once.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, fileID string, params model.SeparationParams) error {
	data, err := json.Marshal(taskPayload{FileID: fileID, Params: params})
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeSeparation, data)
	if _, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// SeparationWorker processes separation tasks
type SeparationWorker struct {
	separation *service.SeparationService
}

func NewSeparationWorker(separation *service.SeparationService) *SeparationWorker {
	return &SeparationWorker{separation: separation}
}

// ProcessTask handles one separation task.
func (w *SeparationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload taskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal task payload: %w", err)
	}

	log.WithField("file_id", payload.FileID).Info("processing separation task")
	return w.separation.Process(ctx, payload.FileID, payload.Params)
}
