package today

import (
	"fmt"

	"eventstoday/internal/model"
)

// State is the render state of the today panel.
type State int

const (
	StateLoading State = iota
	StateError
	StateEmpty
	StateNonEmpty
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateEmpty:
		return "empty"
	case StateNonEmpty:
		return "events"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Content records which of the three mutually exclusive sources filled a View.
type Content int

const (
	ContentNone Content = iota
	ContentFetched
	ContentDaySchedule
	ContentGenericFallback
)

func (c Content) String() string {
	switch c {
	case ContentFetched:
		return "fetched"
	case ContentDaySchedule:
		return "day_schedule"
	case ContentGenericFallback:
		return "generic_fallback"
	default:
		return "none"
	}
}

func (c Content) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// EmptyMessage is shown when neither the source nor the weekday schedule has anything.
const EmptyMessage = "No special events today, but we're open as usual!"

// View is everything the templates and the JSON API need for one render.
type View struct {
	State      State
	Content    Content
	Events     []model.DisplayEvent
	Err        error
	RetryCount int
	// Date is the venue-local day, formatted 2006-01-02.
	Date string
}

// Loading is the initial view before the first fetch completes.
func Loading(retry int) View {
	return View{State: StateLoading, RetryCount: retry}
}

// Ready reports whether the view holds a finished fetch outcome.
func (v View) Ready() bool {
	return v.State != StateLoading
}

// NextRetry is the retry count a "try again" action should send.
func (v View) NextRetry() int {
	return v.RetryCount + 1
}

// Announcement is the text for the polite live region.
func (v View) Announcement() string {
	switch v.State {
	case StateLoading:
		return "Loading today's events..."
	case StateEmpty:
		return "No special events today, but we're open as usual"
	}
	n := len(v.Events)
	if n == 1 {
		return "1 event happening today"
	}
	return fmt.Sprintf("%d events happening today", n)
}
