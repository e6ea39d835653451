package interceptor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pwashop/models"
	"pwashop/services/cachestore"

	"go.uber.org/zap"
)

// cacheWriter stores snapshots off the response path. Failures go to its own
// error channel and are only logged.
type cacheWriter struct {
	store   cachestore.Store
	logger  *zap.Logger
	timeout time.Duration

	// mu guards closed together with pending.Add so close never races a submit.
	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
	errs    chan error
	done    chan struct{}
	once    sync.Once
}

func newCacheWriter(store cachestore.Store, logger *zap.Logger) *cacheWriter {
	w := &cacheWriter{
		store:   store,
		logger:  logger,
		timeout: 5 * time.Second,
		errs:    make(chan error, 64),
		done:    make(chan struct{}),
	}
	go w.drain()
	return w
}

func (w *cacheWriter) submit(partition, key string, snap *models.ResponseSnapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := w.store.Put(ctx, partition, key, snap); err != nil {
			w.errs <- fmt.Errorf("cache write %s into %s: %w", key, partition, err)
		}
	}()
}

func (w *cacheWriter) drain() {
	defer close(w.done)
	for err := range w.errs {
		w.logger.Warn("background cache write failed", zap.Error(err))
	}
}

// wait blocks until every submitted write finished.
func (w *cacheWriter) wait() {
	w.pending.Wait()
}

func (w *cacheWriter) close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		w.pending.Wait()
		close(w.errs)
		<-w.done
	})
}
