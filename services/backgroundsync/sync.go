// Package backgroundsync defers offline mutations until the origin is
// reachable again and replays them exactly once per idempotency key.
package backgroundsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pwashop/models"
	"pwashop/services/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

var ErrInvalidAction = errors.New("invalid sync action")

// replayHeaders are the only request headers kept on a queued action.
var replayHeaders = []string{"Accept", "Accept-Language", "Authorization", "Content-Type"}

// Enqueuer schedules tasks; *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Fetcher replays a request against the origin.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*models.ResponseSnapshot, error)
}

type Syncer struct {
	queue   Enqueuer
	pending *PendingStore
	network Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// NewSyncer builds a syncer. A nil queue means deferred sync is unavailable
// and Register becomes a no-op.
func NewSyncer(queue Enqueuer, pending *PendingStore, network Fetcher, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		queue:   queue,
		pending: pending,
		network: network,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Syncer) Supported() bool {
	return s.queue != nil
}

// Register asks for a deferred replay of one user's tag. It is best effort.
func (s *Syncer) Register(ctx context.Context, userID, tag string) error {
	if !s.Supported() {
		s.logger.Debug("background sync unavailable, skipping registration", zap.String("tag", tag))
		return nil
	}
	if userID == "" {
		return ErrInvalidAction
	}
	task, opts, err := tasks.NewSyncTask(userID, tag)
	if err != nil {
		return fmt.Errorf("build sync task: %w", err)
	}
	if _, err := s.queue.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("register sync %s: %w", tag, err)
	}
	s.logger.Info("background sync registered", zap.String("tag", tag), zap.String("userId", userID))
	return nil
}

// Queue stores action for later replay under userID and registers its tag.
// It returns the idempotency key and whether the action was new.
func (s *Syncer) Queue(ctx context.Context, userID, tag string, action models.SyncAction) (string, bool, error) {
	if userID == "" || tag == "" || action.Method == "" || !strings.HasPrefix(action.Path, "/") {
		return "", false, ErrInvalidAction
	}
	if _, err := url.ParseRequestURI(action.Path); err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	action.Method = strings.ToUpper(action.Method)
	if action.Method == http.MethodGet || action.Method == http.MethodHead {
		return "", false, fmt.Errorf("%w: %s is not a mutation", ErrInvalidAction, action.Method)
	}
	if action.IdempotencyKey == "" {
		action.IdempotencyKey = uuid.NewString()
	}
	action.UserID = userID
	action.Tag = tag
	action.Header = filterHeader(action.Header)
	if action.QueuedAt.IsZero() {
		action.QueuedAt = s.now()
	}

	added, err := s.pending.Add(ctx, action)
	if err != nil {
		return "", false, err
	}
	if err := s.Register(ctx, userID, tag); err != nil {
		s.logger.Warn("sync registration failed", zap.String("tag", tag), zap.Error(err))
	}
	return action.IdempotencyKey, added, nil
}

func (s *Syncer) Pending(ctx context.Context, userID, tag string) (int64, error) {
	return s.pending.Count(ctx, userID, tag)
}

// HandleSyncTask is the asynq handler for tasks.TypeSyncReplay.
func (s *Syncer) HandleSyncTask(ctx context.Context, task *asynq.Task) error {
	p, err := tasks.ParseSyncTask(task)
	if err != nil {
		s.logger.Error("invalid sync task payload", zap.Error(err))
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, ErrInvalidAction)
	}
	return s.Replay(ctx, p.UserID, p.Tag)
}

// Replay sends the pending actions of one user's tag in queued order. An action is
// settled by any answer below 500; the first transport error or 5xx stops the
// replay so later actions never overtake it.
func (s *Syncer) Replay(ctx context.Context, userID, tag string) error {
	actions, err := s.pending.List(ctx, userID, tag)
	if err != nil {
		return err
	}

	var replayed int
	for _, a := range actions {
		req, err := replayRequest(ctx, a)
		if err != nil {
			s.logger.Error("dropping unreplayable sync action",
				zap.String("tag", tag), zap.String("idempotencyKey", a.IdempotencyKey), zap.Error(err))
			if err := s.pending.Remove(ctx, userID, tag, a.IdempotencyKey); err != nil {
				return err
			}
			continue
		}
		snap, err := s.network.Fetch(ctx, req)
		if err != nil {
			s.logger.Warn("sync replay failed, will retry",
				zap.String("tag", tag), zap.String("idempotencyKey", a.IdempotencyKey), zap.Error(err))
			return fmt.Errorf("replay %s: %w", a.IdempotencyKey, err)
		}
		if snap.Status >= http.StatusInternalServerError {
			s.logger.Warn("origin rejected sync replay, will retry",
				zap.String("tag", tag), zap.String("idempotencyKey", a.IdempotencyKey), zap.Int("status", snap.Status))
			return fmt.Errorf("replay %s: origin status %d", a.IdempotencyKey, snap.Status)
		}
		if snap.Status >= http.StatusBadRequest {
			s.logger.Warn("dropping sync action rejected by origin",
				zap.String("tag", tag), zap.String("idempotencyKey", a.IdempotencyKey), zap.Int("status", snap.Status))
		}
		if err := s.pending.Remove(ctx, userID, tag, a.IdempotencyKey); err != nil {
			return err
		}
		replayed++
	}

	if replayed > 0 {
		s.logger.Info("background sync completed", zap.String("tag", tag), zap.Int("replayed", replayed))
	}
	return nil
}

func filterHeader(h http.Header) http.Header {
	out := http.Header{}
	for _, name := range replayHeaders {
		if v := h.Values(name); len(v) > 0 {
			out[name] = append([]string(nil), v...)
		}
	}
	return out
}

func replayRequest(ctx context.Context, a models.SyncAction) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, a.Method, a.Path, bytes.NewReader(a.Body))
	if err != nil {
		return nil, err
	}
	req.Header = a.Header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set(IdempotencyHeader, a.IdempotencyKey)
	req.ContentLength = int64(len(a.Body))
	return req, nil
}
