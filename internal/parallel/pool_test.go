package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapKeepsOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	var running, peak int32
	got, err := Map(context.Background(), 2, items, func(_ context.Context, i, v int) (int, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Duration(v) * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return v * v, nil
	})
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]int{25, 1, 16, 4, 9}, got))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestMapStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	items := make([]int, 100)
	_, err := Map(context.Background(), 1, items, func(ctx context.Context, i, _ int) (int, error) {
		atomic.AddInt32(&calls, 1)
		if i == 3 {
			return 0, boom
		}
		return i, ctx.Err()
	})
	assert.ErrorIs(t, err, boom)
	assert.Less(t, atomic.LoadInt32(&calls), int32(100))
}

func TestSubmitAfterWait(t *testing.T) {
	wp := NewWorkerPool(context.Background(), 0)
	assert.Positive(t, wp.Workers())
	var done int32
	require.NoError(t, wp.Submit(func(context.Context) error {
		atomic.AddInt32(&done, 1)
		return nil
	}))
	require.NoError(t, wp.Wait())
	assert.Equal(t, int32(1), done)
	assert.ErrorIs(t, wp.Submit(func(context.Context) error { return nil }), ErrPoolShutdown)
	assert.NoError(t, wp.Wait(), "wait is idempotent")
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Map(ctx, 2, []int{1, 2, 3}, func(ctx context.Context, _, v int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}
