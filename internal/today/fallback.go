package today

import (
	"strings"
	"time"

	"eventstoday/internal/config"
	"eventstoday/internal/model"
)

// GenericFallback is the single card shown when the events source fails.
var GenericFallback = model.DisplayEvent{
	ID:          "fallback-1",
	Name:        "Check Our Events",
	Time:        "Various Times",
	Description: "Call us for today's events schedule",
	Link:        "/whats-on",
}

// defaultDays is the regular weekly schedule, 0=Sunday..6=Saturday.
// Friday has no regular events.
var defaultDays = map[time.Weekday][]model.DisplayEvent{
	time.Sunday: {
		{
			ID:          "sunday-roast",
			Name:        "Sunday Roast",
			Time:        "12:00 PM - 5:00 PM",
			Description: "Traditional British roast dinner with all the trimmings",
			Link:        "/sunday-lunch",
		},
	},
	time.Monday: {
		{
			ID:          "pub-open",
			Name:        "Bar Open",
			Time:        "4:00 PM - 10:00 PM",
			Description: "Relax with a drink (kitchen closed Mondays)",
			Link:        "/drinks",
		},
	},
	time.Tuesday: {
		{
			ID:          "quiz-night",
			Name:        "Quiz Night",
			Time:        "8:00 PM",
			Description: "Test your knowledge and win prizes!",
			Link:        "/whats-on/quiz-night",
		},
	},
	time.Wednesday: {
		{
			ID:          "midweek-specials",
			Name:        "Midweek Specials",
			Time:        "6:00 PM - 9:00 PM",
			Description: "Great deals on food and drinks",
			Link:        "/food-menu",
		},
	},
	time.Thursday: {
		{
			ID:          "thursday-specials",
			Name:        "Thursday Specials",
			Time:        "6:00 PM - 9:00 PM",
			Description: "Great deals on drinks and food",
			Link:        "/whats-on",
		},
	},
	time.Friday: {},
	time.Saturday: {
		{
			ID:          "drag-show",
			Name:        "Drag Show with Nikki Manfadge",
			Time:        "9:00 PM",
			Description: "Spectacular drag performance and entertainment",
			Link:        "/whats-on/drag-shows",
		},
		{
			ID:          "cash-bingo",
			Name:        "Cash Bingo",
			Time:        "3:00 PM",
			Description: "Win cash prizes in our monthly bingo",
			Link:        "/whats-on/cash-bingo",
		},
	},
}

// Schedule maps a weekday to the static entries shown when the source
// returns nothing for today.
type Schedule struct {
	days map[time.Weekday][]model.DisplayEvent
}

// DefaultSchedule returns the built-in weekly schedule.
func DefaultSchedule() Schedule {
	return Schedule{days: defaultDays}
}

// ScheduleFromConfig layers per-day overrides from the config on top of
// the built-in schedule.
func ScheduleFromConfig(fc config.FallbackConfig) Schedule {
	if len(fc.Days) == 0 {
		return DefaultSchedule()
	}

	days := make(map[time.Weekday][]model.DisplayEvent, len(defaultDays))
	for d, entries := range defaultDays {
		days[d] = entries
	}
	for name, entries := range fc.Days {
		d, ok := parseWeekday(name)
		if !ok {
			continue
		}
		list := make([]model.DisplayEvent, 0, len(entries))
		for _, e := range entries {
			list = append(list, model.DisplayEvent{
				ID:          e.ID,
				Name:        e.Name,
				Time:        e.Time,
				Description: e.Description,
				Link:        e.Link,
			})
		}
		days[d] = list
	}
	return Schedule{days: days}
}

// For returns a copy of the entries for weekday day (0=Sunday..6=Saturday).
// Out-of-range days return an empty list.
func (s Schedule) For(day int) []model.DisplayEvent {
	if day < 0 || day > 6 {
		return []model.DisplayEvent{}
	}
	entries := s.days[time.Weekday(day)]
	out := make([]model.DisplayEvent, len(entries))
	copy(out, entries)
	return out
}

func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, true
		}
	}
	return 0, false
}
