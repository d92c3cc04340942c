package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (failingStore) Add(context.Context, string) error { return errors.New("redis down") }

func TestMemoryIdempotencyStore_AddAndContains(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Minute)

	ok, err := s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, "evt-1"))
	ok, err = s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Millisecond)
	require.NoError(t, s.Add(ctx, "evt-1"))

	time.Sleep(5 * time.Millisecond)

	ok, err := s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	s := NewRedisIdempotencyStore(client, "processed:", time.Hour)

	ok, err := s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, "evt-1"))
	ok, err = s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("processed:evt-1"))

	mr.FastForward(2 * time.Hour)
	ok, err = s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	calls := 0
	inner := func(context.Context, *Event) error {
		calls++
		return nil
	}
	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), inner, discardLogger())
	evt := &Event{EventID: "evt-1", EventType: "payment.completed"}

	require.NoError(t, h(context.Background(), evt))
	require.NoError(t, h(context.Background(), evt))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	calls := 0
	inner := func(context.Context, *Event) error {
		calls++
		if calls == 1 {
			return errBoom
		}
		return nil
	}
	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), inner, discardLogger())
	evt := &Event{EventID: "evt-1"}

	assert.ErrorIs(t, h(context.Background(), evt), errBoom)
	assert.NoError(t, h(context.Background(), evt))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_EmptyIDPassesThrough(t *testing.T) {
	calls := 0
	inner := func(context.Context, *Event) error {
		calls++
		return nil
	}
	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), inner, discardLogger())

	require.NoError(t, h(context.Background(), &Event{}))
	require.NoError(t, h(context.Background(), &Event{}))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_StoreErrorProcessesAnyway(t *testing.T) {
	calls := 0
	inner := func(context.Context, *Event) error {
		calls++
		return nil
	}
	h := IdempotentHandler(failingStore{}, inner, discardLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-1"}))
	assert.Equal(t, 1, calls)
}
