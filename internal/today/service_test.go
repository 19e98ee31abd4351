package today_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventstoday/internal/cache"
	"eventstoday/internal/model"
	"eventstoday/internal/today"
)

type fakeSource struct {
	mu     sync.Mutex
	calls  int
	events []model.Event
	err    error
	gate   chan struct{}
}

func (f *fakeSource) GetTodaysEvents(ctx context.Context) ([]model.Event, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.events, f.err
}

func (f *fakeSource) set(events []model.Event, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events, f.err = events, err
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// 2026-10-20 is a Tuesday, 2026-10-23 a Friday.
func at(day int) func() time.Time {
	return func() time.Time { return time.Date(2026, 10, day, 12, 0, 0, 0, time.UTC) }
}

func newService(src today.Source, now func() time.Time) *today.Service {
	return today.NewService(src, cache.NewMemory(), today.Options{
		Location:         time.UTC,
		LimitedThreshold: 10,
		CacheTTL:         time.Minute,
		Now:              now,
	})
}

func TestLoadNonEmpty(t *testing.T) {
	src := &fakeSource{events: []model.Event{
		{ID: "1", Name: "Quiz", StartDate: "2026-10-20T20:00:00Z"},
		{ID: "2", Slug: "bingo", Name: "Bingo"},
		{ID: "3", Name: "Karaoke"},
	}}
	v := newService(src, at(20)).Load(context.Background(), 0)

	assert.Equal(t, today.StateNonEmpty, v.State)
	assert.Equal(t, today.ContentFetched, v.Content)
	require.Len(t, v.Events, 3)
	assert.Equal(t, "/events/bingo", v.Events[1].Link)
	assert.Equal(t, "2026-10-20", v.Date)
	assert.NoError(t, v.Err)
	assert.Equal(t, "3 events happening today", v.Announcement())
}

func TestLoadEmptyUsesWeekdaySchedule(t *testing.T) {
	v := newService(&fakeSource{events: []model.Event{}}, at(20)).Load(context.Background(), 0)

	assert.Equal(t, today.StateNonEmpty, v.State)
	assert.Equal(t, today.ContentDaySchedule, v.Content)
	require.Len(t, v.Events, 1)
	assert.Equal(t, "quiz-night", v.Events[0].ID)
	assert.Equal(t, "1 event happening today", v.Announcement())
}

func TestLoadEmptyOnFriday(t *testing.T) {
	v := newService(&fakeSource{}, at(23)).Load(context.Background(), 0)

	assert.Equal(t, today.StateEmpty, v.State)
	assert.Empty(t, v.Events)
	assert.Equal(t, "No special events today, but we're open as usual", v.Announcement())
}

func TestLoadErrorShowsSingleFallback(t *testing.T) {
	boom := errors.New("upstream down")
	svc := newService(&fakeSource{err: boom}, at(20))

	v := svc.Load(context.Background(), 0)

	assert.Equal(t, today.StateError, v.State)
	assert.Equal(t, today.ContentGenericFallback, v.Content)
	require.Len(t, v.Events, 1)
	assert.Equal(t, "Check Our Events", v.Events[0].Name)
	assert.ErrorIs(t, v.Err, boom)
	assert.ErrorIs(t, svc.Tracker().Error(), boom)
	assert.Equal(t, 1, v.NextRetry())
}

func TestLoadWithoutSource(t *testing.T) {
	v := newService(nil, at(20)).Load(context.Background(), 0)
	assert.Equal(t, today.StateError, v.State)
	assert.ErrorIs(t, v.Err, today.ErrNoSource)
}

func TestRetryRefetchesExactlyOncePerCount(t *testing.T) {
	src := &fakeSource{err: errors.New("flaky")}
	svc := newService(src, at(20))
	ctx := context.Background()

	v := svc.Load(ctx, 0)
	require.Equal(t, today.StateError, v.State)
	assert.Equal(t, 1, src.count())

	src.set([]model.Event{{ID: "1", Name: "Quiz"}}, nil)

	v = svc.Load(ctx, v.NextRetry())
	assert.Equal(t, today.StateNonEmpty, v.State)
	assert.Equal(t, 1, v.RetryCount)
	assert.Equal(t, 2, src.count())
	assert.NoError(t, svc.Tracker().Error())

	// Same count again is served from cache.
	svc.Load(ctx, 1)
	svc.Load(ctx, 0)
	assert.Equal(t, 2, src.count())

	svc.Load(ctx, 2)
	assert.Equal(t, 3, src.count())

	v = svc.Retry(ctx)
	assert.Equal(t, 3, v.RetryCount)
	assert.Equal(t, 4, src.count())
	assert.Equal(t, 3, svc.Tracker().RetryCount())
}

func TestRetryCountCannotJumpAhead(t *testing.T) {
	src := &fakeSource{events: []model.Event{{ID: "1"}}}
	svc := newService(src, at(20))
	ctx := context.Background()

	v := svc.Load(ctx, math.MaxInt)
	assert.Equal(t, 1, v.RetryCount)
	assert.Equal(t, 2, v.NextRetry())
	assert.Equal(t, 1, svc.Tracker().RetryCount())
	assert.Equal(t, 1, src.count())

	v = svc.Load(ctx, v.NextRetry())
	assert.Equal(t, 2, v.RetryCount)
	assert.Equal(t, 2, src.count())

	v = svc.Retry(ctx)
	assert.Equal(t, 3, v.RetryCount)
	assert.Equal(t, 3, src.count())
}

func TestCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	src := &fakeSource{events: []model.Event{{ID: "1", Name: "Quiz"}}, gate: make(chan struct{})}
	svc := newService(src, at(20))

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	resA := make(chan today.View, 1)
	go func() { resA <- svc.Load(ctxA, 0) }()
	time.Sleep(20 * time.Millisecond)

	resB := make(chan today.View, 1)
	go func() { resB <- svc.Load(context.Background(), 0) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	a := <-resA
	assert.Equal(t, today.StateError, a.State)
	assert.ErrorIs(t, a.Err, context.Canceled)
	assert.NoError(t, svc.Tracker().Error())

	close(src.gate)
	b := <-resB
	assert.Equal(t, today.StateNonEmpty, b.State)
	assert.NoError(t, b.Err)
	require.Len(t, b.Events, 1)
	assert.NoError(t, svc.Tracker().Error())
	assert.Equal(t, 1, src.count())
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	src := &fakeSource{events: []model.Event{{ID: "1"}}, gate: make(chan struct{})}
	svc := newService(src, at(20))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := svc.Load(context.Background(), 0)
			assert.Equal(t, today.StateNonEmpty, v.State)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, 1, src.count())
}

func TestRefreshWarmsCache(t *testing.T) {
	src := &fakeSource{events: []model.Event{{ID: "1"}}}
	svc := newService(src, at(20))

	require.NoError(t, svc.Refresh(context.Background()))
	svc.Load(context.Background(), 0)
	assert.Equal(t, 1, src.count())

	src.set(nil, errors.New("down"))
	assert.Error(t, svc.Refresh(context.Background()))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "loading", today.StateLoading.String())
	assert.Equal(t, "error", today.StateError.String())
	assert.Equal(t, "empty", today.StateEmpty.String())
	assert.Equal(t, "events", today.StateNonEmpty.String())
	assert.Equal(t, "Loading today's events...", today.Loading(0).Announcement())
}
