package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"influxrelay/internal/record"
)

func rec(ts int64) *record.Record {
	return &record.Record{DateTime: ts}
}

func TestQueueFIFO(t *testing.T) {
	q := New()
	for i := int64(1); i <= 3; i++ {
		q.Push(rec(i))
	}
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, got.DateTime)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueStopSentinel(t *testing.T) {
	q := New()
	q.Push(rec(1))
	q.PushStop()
	q.Push(rec(2))
	assert.Equal(t, 2, q.Len())

	ctx := context.Background()
	got, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.DateTime)

	_, err = q.Pop(ctx)
	assert.True(t, errors.Is(err, ErrStopped))
}

func TestQueueTrimOldest(t *testing.T) {
	q := New()
	for i := int64(1); i <= 5; i++ {
		q.Push(rec(i))
	}
	q.PushStop()

	dropped := q.TrimOldest(2)
	require.Len(t, dropped, 3)
	assert.Equal(t, int64(1), dropped[0].DateTime)
	assert.Equal(t, int64(3), dropped[2].DateTime)
	assert.Equal(t, 2, q.Len())

	ctx := context.Background()
	got, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.DateTime)
	got, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.DateTime)

	// The sentinel survives trimming.
	_, err = q.Pop(ctx)
	assert.True(t, errors.Is(err, ErrStopped))

	assert.Nil(t, q.TrimOldest(10))
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := New()
	done := make(chan *record.Record)
	go func() {
		got, err := q.Pop(context.Background())
		if err == nil {
			done <- got
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(rec(42))
	select {
	case got := <-done:
		require.NotNil(t, got)
		assert.Equal(t, int64(42), got.DateTime)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueuePopCancelled(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestQueueConcurrentPush(t *testing.T) {
	q := New()
	const producers, each = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Push(rec(int64(i)))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, producers*each, q.Len())

	ctx := context.Background()
	for i := 0; i < producers*each; i++ {
		_, err := q.Pop(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, q.Len())
}
