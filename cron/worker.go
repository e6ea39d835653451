package cron

import (
	"context"
	"time"

	"pwashop/config"
	"pwashop/services/backgroundsync"
	"pwashop/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// SyncRedisOpt is the asynq connection for the background sync queue.
func SyncRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSyncQueueDB,
	}
}

// NewSyncMux routes replay tasks to the syncer.
func NewSyncMux(syncer *backgroundsync.Syncer) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSyncReplay, syncer.HandleSyncTask)
	return mux
}

// InitSyncWorker runs the replay worker in background until ctx is done.
func InitSyncWorker(ctx context.Context, syncer *backgroundsync.Syncer, logger *zap.Logger) *asynq.Server {
	srv := asynq.NewServer(
		SyncRedisOpt(),
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				tasks.SyncQueue: 1,
			},
			RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
				d := time.Duration(n*n) * 5 * time.Second
				if d > 10*time.Minute {
					d = 10 * time.Minute
				}
				return d
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				logger.Warn("sync task failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)

	mux := NewSyncMux(syncer)

	go monitorRedisConnection(ctx, logger)

	// Start async worker with retry logic
	go func() {
		logger.Info("starting sync worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Start(mux); err != nil {
				logger.Error("failed to start sync worker",
					zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))

				if attempts == maxAttempts {
					logger.Error("sync worker gave up; queued actions stay pending")
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(attempts*2) * time.Second):
				}
			} else {
				break
			}
		}
	}()

	return srv
}

// monitorRedisConnection pings the queue Redis periodically to detect failures at runtime.
func monitorRedisConnection(ctx context.Context, logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSyncQueueDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
				logger.Warn("sync queue redis connection lost", zap.Error(err))
			}
		}
	}
}
