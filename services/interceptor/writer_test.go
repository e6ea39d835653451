package interceptor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"pwashop/models"
	"pwashop/services/cachestore"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// failingStore rejects every write. Only Put is used by the writer.
type failingStore struct {
	cachestore.Store
	puts atomic.Int64
}

func (s *failingStore) Put(context.Context, string, string, *models.ResponseSnapshot) error {
	s.puts.Add(1)
	return errors.New("redis: connection pool timeout")
}

func TestWriterCloseWhileSubmitting(t *testing.T) {
	for round := 0; round < 50; round++ {
		store := &failingStore{}
		w := newCacheWriter(store, zap.NewNop())
		snap := &models.ResponseSnapshot{Status: 200}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					w.submit("runtime", "GET /api/products", snap)
				}
			}()
		}
		assert.NotPanics(t, w.close)
		wg.Wait()

		// Writes submitted after close are dropped.
		before := store.puts.Load()
		w.submit("runtime", "GET /api/products", snap)
		w.wait()
		assert.Equal(t, before, store.puts.Load())
	}
}
