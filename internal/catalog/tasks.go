package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeSyncCatalog is the asynq task type for a catalog sync.
const TypeSyncCatalog = "catalog:sync"

// NewSyncTask builds a catalog sync task. Duplicate tasks within the window are dropped.
func NewSyncTask() (*asynq.Task, []asynq.Option) {
	task := asynq.NewTask(TypeSyncCatalog, nil)
	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(10 * time.Minute),
		asynq.Unique(5 * time.Minute),
	}
	return task, opts
}

// HandleSyncTask runs a sync for an asynq task.
func (s *Syncer) HandleSyncTask(ctx context.Context, _ *asynq.Task) error {
	if _, err := s.Run(ctx); err != nil {
		return err
	}
	return nil
}

// RegisterHandlers mounts the sync handler on mux.
func (s *Syncer) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSyncCatalog, s.HandleSyncTask)
}

// RegisterSchedule adds the periodic sync entry to scheduler.
func RegisterSchedule(scheduler *asynq.Scheduler, cronspec string) (string, error) {
	task, opts := NewSyncTask()
	id, err := scheduler.Register(cronspec, task, opts...)
	if err != nil {
		return "", fmt.Errorf("catalog: register sync schedule %q: %w", cronspec, err)
	}
	return id, nil
}

// Enqueue requests an immediate sync through the asynq client.
func Enqueue(ctx context.Context, client *asynq.Client) (string, error) {
	task, opts := NewSyncTask()
	info, err := client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("catalog: enqueue sync: %w", err)
	}
	return info.ID, nil
}
