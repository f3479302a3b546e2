package util_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/util"
)

func TestInvalidationQueue(t *testing.T) {
	logger.InitLogger(t.TempDir())
	defer logger.Sync()

	t.Run("processes enqueued jobs", func(t *testing.T) {
		var mu sync.Mutex
		var handled []string
		q := util.NewInvalidationQueue(16, 0, func(ctx context.Context, job util.InvalidationJob) error {
			mu.Lock()
			handled = append(handled, job.ID)
			mu.Unlock()
			return nil
		})
		q.Start(context.Background())

		require.NoError(t, q.Enqueue(util.InvalidationJob{Kind: util.InvalidateByAccount, ID: "a1"}))
		require.NoError(t, q.Enqueue(util.InvalidationJob{Kind: util.InvalidateByRole, ID: "r1"}))
		require.NoError(t, q.Enqueue(util.InvalidationJob{Kind: util.InvalidateByScope, ID: "t1", IsApp: false}))
		q.Stop(5 * time.Second)

		assert.Equal(t, []string{"a1", "r1", "t1"}, handled)
	})

	t.Run("retries a failing job", func(t *testing.T) {
		var mu sync.Mutex
		attempts := 0
		q := util.NewInvalidationQueue(16, 2, func(ctx context.Context, job util.InvalidationJob) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return assert.AnError
			}
			return nil
		})
		q.Start(context.Background())

		require.NoError(t, q.Enqueue(util.InvalidationJob{Kind: util.InvalidateByAccount, ID: "a1"}))
		q.Stop(5 * time.Second)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, attempts)
	})

	t.Run("enqueue after stop is refused", func(t *testing.T) {
		q := util.NewInvalidationQueue(16, 0, func(ctx context.Context, job util.InvalidationJob) error {
			return nil
		})
		q.Start(context.Background())
		q.Stop(time.Second)

		err := q.Enqueue(util.InvalidationJob{Kind: util.InvalidateByAccount, ID: "a1"})
		assert.ErrorIs(t, err, cordon_errors.ErrQueueClosed)
	})

	t.Run("stop races concurrent producers without panicking", func(t *testing.T) {
		q := util.NewInvalidationQueue(2, 0, func(ctx context.Context, job util.InvalidationJob) error {
			return nil
		})
		q.Start(context.Background())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					if err := q.Enqueue(util.InvalidationJob{Kind: util.InvalidateByAccount, ID: "a"}); err != nil {
						assert.ErrorIs(t, err, cordon_errors.ErrQueueClosed)
						return
					}
				}
			}()
		}
		q.Stop(5 * time.Second)
		wg.Wait()

		err := q.Enqueue(util.InvalidationJob{Kind: util.InvalidateByAccount, ID: "a"})
		assert.ErrorIs(t, err, cordon_errors.ErrQueueClosed)
	})

	t.Run("stop drains the backlog", func(t *testing.T) {
		var mu sync.Mutex
		handled := 0
		q := util.NewInvalidationQueue(64, 0, func(ctx context.Context, job util.InvalidationJob) error {
			mu.Lock()
			handled++
			mu.Unlock()
			return nil
		})

		for i := 0; i < 20; i++ {
			require.NoError(t, q.Enqueue(util.InvalidationJob{Kind: util.InvalidateByAccount, ID: "a"}))
		}
		// Worker starts after the backlog is built.
		q.Start(context.Background())
		q.Stop(5 * time.Second)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 20, handled)
	})
}
