package today

import (
	"regexp"
	"strings"
	"time"

	"eventstoday/internal/format"
	"eventstoday/internal/model"
)

const defaultDescription = "Join us for a great time!"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// MapOptions parameterizes MapEvent.
type MapOptions struct {
	Location         *time.Location
	LimitedThreshold int
}

// MapEvent flattens an upstream event into its card view. It is pure.
func MapEvent(ev model.Event, opts MapOptions) model.DisplayEvent {
	d := model.DisplayEvent{
		ID:                  ev.ID,
		Name:                ev.Name,
		Time:                format.FormatEventTime(ev.StartDate, opts.Location),
		DoorTime:            format.FormatDoorTime(ev.DoorTime, opts.Location),
		Description:         firstNonEmpty(ev.ShortDescription, ev.Description, defaultDescription),
		Link:                "/events/" + firstNonEmpty(ev.Slug, ev.ID),
		SoldOut:             ev.RemainingAttendeeCapacity != nil && *ev.RemainingAttendeeCapacity == 0,
		LimitedAvailability: format.HasLimitedAvailability(ev, opts.LimitedThreshold),
	}

	if ev.RemainingAttendeeCapacity != nil {
		n := *ev.RemainingAttendeeCapacity
		d.RemainingSeats = &n
	}
	if ev.Offers != nil {
		d.Price = ev.Offers.Price
		d.PriceCurrency = ev.Offers.PriceCurrency
	}
	if ev.Performer != nil {
		d.Performer = ev.Performer.Name
	}
	if ev.Category != nil && ev.Category.Name != "" {
		d.Category = &model.Category{
			Name:  ev.Category.Name,
			Color: normalizeColor(ev.Category.Color),
		}
	}
	return d
}

// MapEvents maps every event, preserving order.
func MapEvents(events []model.Event, opts MapOptions) []model.DisplayEvent {
	out := make([]model.DisplayEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, MapEvent(ev, opts))
	}
	return out
}

// normalizeColor returns a six-digit hex colour, or "" when c is not a hex
// colour. The badge appends a two-digit alpha, so short forms are expanded.
func normalizeColor(c string) string {
	c = strings.TrimSpace(c)
	if !hexColor.MatchString(c) {
		return ""
	}
	if len(c) == 4 {
		c = "#" + strings.Repeat(c[1:2], 2) + strings.Repeat(c[2:3], 2) + strings.Repeat(c[3:4], 2)
	}
	return strings.ToLower(c)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
