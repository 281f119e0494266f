package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ReverifyAssetTask is scheduled after an asset is stored so its score
	// is recomputed from the evidence held in object storage.
	ReverifyAssetTask = "asset:reverify"
)

// ReverifyPayload tells the worker which asset to rescore and where its
// evidence lives.
type ReverifyPayload struct {
	AssetID   string `json:"asset_id"`
	ObjectKey string `json:"object_key"`
}

// Enqueuer is the subset of *asynq.Client the API needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewReverifyTask builds the task without enqueueing it.
func NewReverifyTask(payload ReverifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ReverifyAssetTask, data), nil
}

// EnqueueReverify enqueues a re-verification job.
func EnqueueReverify(ctx context.Context, client Enqueuer, payload ReverifyPayload) error {
	task, err := NewReverifyTask(payload)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue reverify task: %w", err)
	}
	return nil
}
