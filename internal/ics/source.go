package ics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventstoday/internal/fetch"
	"eventstoday/internal/model"
)

// Source serves today's events from an ICS calendar feed.
type Source struct {
	URL      string
	Fetcher  *fetch.Fetcher
	Location *time.Location
	// Now is the clock used to pick "today"; nil means time.Now.
	Now func() time.Time
}

// NewSource returns a Source for the given feed URL.
func NewSource(url string, f *fetch.Fetcher, loc *time.Location) *Source {
	return &Source{URL: url, Fetcher: f, Location: loc}
}

// GetTodaysEvents fetches the feed and returns every occurrence that
// intersects the current venue-local day.
func (s *Source) GetTodaysEvents(ctx context.Context) ([]model.Event, error) {
	res, err := s.Fetcher.Get(ctx, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ics: %w", err)
	}
	return s.eventsForDay(res.Body, s.now())
}

func (s *Source) eventsForDay(body []byte, now time.Time) ([]model.Event, error) {
	loc := s.location()
	parsed, err := ParseICS(body, loc)
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	now = now.In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	occs, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      dayStart,
		RangeEnd:        dayStart.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("ics: expand: %w", err)
	}

	events := make([]model.Event, 0, len(occs))
	for _, occ := range occs {
		events = append(events, toEvent(occ))
	}
	return events, nil
}

func toEvent(occ Occurrence) model.Event {
	ev := model.Event{
		ID:          occ.UID,
		Name:        occ.Summary,
		Description: strings.TrimSpace(occ.Description),
		StartDate:   occ.Start.Format(time.RFC3339),
		EndDate:     occ.End.Format(time.RFC3339),
	}
	if len(occ.Categories) > 0 {
		ev.Category = &model.Category{Name: occ.Categories[0]}
	}
	return ev
}

func (s *Source) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

func (s *Source) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
