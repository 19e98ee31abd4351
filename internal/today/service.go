// Package today assembles the "today's events" panel: it fetches events,
// maps them to cards and falls back to static content when the source is
// empty or failing.
package today

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"eventstoday/internal/cache"
	appLog "eventstoday/internal/log"
	"eventstoday/internal/model"
)

// ErrNoSource is returned when no events source has been configured.
var ErrNoSource = errors.New("today: no events source configured")

// Source provides today's raw events.
type Source interface {
	GetTodaysEvents(ctx context.Context) ([]model.Event, error)
}

// Options configures a Service. Zero values get sensible defaults.
type Options struct {
	Location         *time.Location
	LimitedThreshold int
	CacheTTL         time.Duration
	Schedule         *Schedule
	Now              func() time.Time
}

// Service runs the fetch-and-map pipeline.
type Service struct {
	source   Source
	store    cache.Store
	ttl      time.Duration
	schedule Schedule
	mapOpts  MapOptions
	now      func() time.Time
	tracker  *Tracker
	group    singleflight.Group
}

// NewService builds a Service. store may be nil to disable caching.
func NewService(src Source, store cache.Store, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	schedule := DefaultSchedule()
	if opts.Schedule != nil {
		schedule = *opts.Schedule
	}

	return &Service{
		source:   src,
		store:    store,
		ttl:      opts.CacheTTL,
		schedule: schedule,
		mapOpts: MapOptions{
			Location:         opts.Location,
			LimitedThreshold: opts.LimitedThreshold,
		},
		now:     opts.Now,
		tracker: &Tracker{},
	}
}

// Tracker exposes the error/retry tracker.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// Load returns the panel view for today. A retry count that has not been
// seen before bypasses the cache and triggers one upstream fetch; counts
// further ahead are treated as the next one.
func (s *Service) Load(ctx context.Context, retry int) View {
	retry, force := s.tracker.claim(retry)
	return s.load(ctx, retry, force)
}

// Retry bumps the retry counter and reloads, bypassing the cache.
func (s *Service) Retry(ctx context.Context) View {
	return s.load(ctx, s.tracker.Retry(), true)
}

// Refresh fetches today's events and stores them, ignoring any cached copy.
// It is used to keep the cache warm between page views.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.fetch(ctx, cache.Key(s.today()), true)
	if err != nil {
		s.record(ctx, err)
		return err
	}
	s.tracker.Clear()
	return nil
}

func (s *Service) load(ctx context.Context, retry int, force bool) View {
	day := s.today()
	key := cache.Key(day)

	if !force {
		if events, ok := s.cached(ctx, key); ok {
			return s.success(events, day, retry)
		}
	}

	events, err := s.fetch(ctx, key, force)
	if err != nil {
		s.record(ctx, err)
		return View{
			State:      StateError,
			Content:    ContentGenericFallback,
			Events:     []model.DisplayEvent{GenericFallback},
			Err:        err,
			RetryCount: retry,
			Date:       day.Format(time.DateOnly),
		}
	}
	s.tracker.Clear()
	return s.success(events, day, retry)
}

func (s *Service) success(events []model.Event, day time.Time, retry int) View {
	v := View{RetryCount: retry, Date: day.Format(time.DateOnly)}

	if len(events) > 0 {
		v.State = StateNonEmpty
		v.Content = ContentFetched
		v.Events = MapEvents(events, s.mapOpts)
		return v
	}

	v.Events = s.schedule.For(int(day.Weekday()))
	if len(v.Events) == 0 {
		v.State = StateEmpty
		v.Content = ContentNone
		return v
	}
	v.State = StateNonEmpty
	v.Content = ContentDaySchedule
	return v
}

func (s *Service) cached(ctx context.Context, key string) ([]model.Event, bool) {
	if s.store == nil {
		return nil, false
	}
	events, ok, err := s.store.Get(ctx, key)
	if err != nil {
		appLog.Error("events cache read failed", err, "key", key)
		return nil, false
	}
	return events, ok
}

// fetch asks the source for today's events. Concurrent callers for the same
// day share a single upstream request; forced (retry) fetches get their own
// flight so they never settle for a cached answer.
//
// The shared request runs detached from any one caller's cancellation, so a
// caller that goes away only abandons its own wait. The source's own timeout
// still bounds the flight.
func (s *Service) fetch(ctx context.Context, key string, force bool) ([]model.Event, error) {
	flight := key
	if force {
		flight += "#force"
	}
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flight, func() (any, error) {
		if !force {
			// A flight that finished just before this one may have filled the cache.
			if events, ok := s.cached(flightCtx, key); ok {
				return events, nil
			}
		}
		if s.source == nil {
			return nil, ErrNoSource
		}
		events, err := s.source.GetTodaysEvents(flightCtx)
		if err != nil {
			return nil, fmt.Errorf("fetching today's events: %w", err)
		}
		if events == nil {
			events = []model.Event{}
		}
		if s.store != nil {
			if err := s.store.Set(flightCtx, key, events, s.ttl); err != nil {
				appLog.Error("events cache write failed", err, "key", key)
			}
		}
		appLog.Info("today's events fetched", "key", key, "count", len(events))
		return events, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			appLog.Debug("today's events fetch shared", "key", key)
		}
		return res.Val.([]model.Event), nil
	}
}

// record routes err to the tracker unless it only reflects the caller
// itself going away.
func (s *Service) record(ctx context.Context, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		appLog.Debug("today's events request abandoned", "err", err.Error())
		return
	}
	s.tracker.HandleError(err)
}

func (s *Service) today() time.Time {
	return s.now().In(s.mapOpts.Location)
}
