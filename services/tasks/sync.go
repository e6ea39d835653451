package tasks

import (
	"encoding/json"
	"time"

	"pwashop/models"

	"github.com/hibiken/asynq"
)

const TypeSyncReplay = "sync:replay"

// SyncQueue is the asynq queue replay tasks run on.
const SyncQueue = "sync"

// NewSyncTask builds the replay task for one user's tag. At most one is
// pending per user and tag within the uniqueness window.
func NewSyncTask(userID, tag string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(models.SyncTaskPayload{UserID: userID, Tag: tag})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSyncReplay, b)
	opts := []asynq.Option{
		asynq.Queue(SyncQueue),
		asynq.Unique(time.Minute),
		asynq.MaxRetry(20),
		asynq.Timeout(2 * time.Minute),
	}

	return task, opts, nil
}

// ParseSyncTask reads the payload of a replay task.
func ParseSyncTask(task *asynq.Task) (models.SyncTaskPayload, error) {
	var p models.SyncTaskPayload
	err := json.Unmarshal(task.Payload(), &p)
	return p, err
}
