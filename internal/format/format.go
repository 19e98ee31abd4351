// Package format turns raw event fields into the strings shown on event cards.
package format

import (
	"strings"
	"time"

	"eventstoday/internal/model"
)

// DefaultLimitedThreshold is used when a caller passes a non-positive threshold.
const DefaultLimitedThreshold = 10

const clockLayout = "3:04 PM"

var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"15:04:05",
	"15:04",
}

// ParseEventTime parses an upstream date/time string. Values without an
// offset are interpreted in loc.
func ParseEventTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// FormatEventTime renders a start date as a venue-local clock time ("8:00 PM").
// Unparseable input is returned unchanged so the card still shows something.
func FormatEventTime(startDate string, loc *time.Location) string {
	t, ok := ParseEventTime(startDate, loc)
	if !ok {
		return strings.TrimSpace(startDate)
	}
	return t.Format(clockLayout)
}

// FormatDoorTime renders the door-opening line, or "" when there is no door time.
func FormatDoorTime(doorTime string, loc *time.Location) string {
	if strings.TrimSpace(doorTime) == "" {
		return ""
	}
	t, ok := ParseEventTime(doorTime, loc)
	if !ok {
		return ""
	}
	return "Doors open " + t.Format(clockLayout)
}

// HasLimitedAvailability reports whether an event still has seats but no more
// than threshold of them.
func HasLimitedAvailability(ev model.Event, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultLimitedThreshold
	}
	c := ev.RemainingAttendeeCapacity
	return c != nil && *c > 0 && *c <= threshold
}

var currencySymbols = map[string]string{
	"GBP": "£",
	"EUR": "€",
	"USD": "$",
}

// CurrencySymbol maps an ISO code to its symbol; unknown codes render as "CODE ".
func CurrencySymbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if sym, ok := currencySymbols[code]; ok {
		return sym
	}
	if code == "" {
		return currencySymbols["GBP"]
	}
	return code + " "
}

// PriceLabel renders the price line of a card. It returns "" when there is no price.
func PriceLabel(price, currency string) string {
	price = strings.TrimSpace(price)
	switch price {
	case "":
		return ""
	case "0":
		return "FREE EVENT"
	}
	return "From " + CurrencySymbol(currency) + price
}
