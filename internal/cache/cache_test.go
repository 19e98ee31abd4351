package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventstoday/internal/model"
)

func TestKey(t *testing.T) {
	day := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "events:today:2026-10-18", Key(day))
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	m := NewMemory()
	m.now = func() time.Time { return now }

	events := []model.Event{{ID: "quiz", Name: "Quiz Night"}}
	require.NoError(t, m.Set(ctx, "k", events, time.Minute))

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, events, got)

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryEmptyListIsAHit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", []model.Event{}, time.Minute))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", []model.Event{{ID: "a"}}, time.Minute))
	require.NoError(t, m.Delete(ctx, "k"))

	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestDialRedisBadURL(t *testing.T) {
	_, err := DialRedis(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}
