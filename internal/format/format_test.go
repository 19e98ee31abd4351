package format_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"eventstoday/internal/format"
	"eventstoday/internal/model"
)

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestFormatEventTime(t *testing.T) {
	loc := london(t)

	assert.Equal(t, "8:00 PM", format.FormatEventTime("2026-10-20T19:00:00Z", loc))
	assert.Equal(t, "7:30 PM", format.FormatEventTime("2026-10-20T19:30:00", loc))
	assert.Equal(t, "12:00 PM", format.FormatEventTime("12:00", loc))
	assert.Equal(t, "sometime", format.FormatEventTime("sometime", loc))
	assert.Equal(t, "", format.FormatEventTime("", loc))
}

func TestFormatDoorTime(t *testing.T) {
	loc := london(t)

	assert.Equal(t, "Doors open 6:30 PM", format.FormatDoorTime("2026-10-20T18:30:00+01:00", loc))
	assert.Equal(t, "", format.FormatDoorTime("", loc))
	assert.Equal(t, "", format.FormatDoorTime("soon", loc))
}

func TestHasLimitedAvailability(t *testing.T) {
	n := func(v int) *int { return &v }

	assert.False(t, format.HasLimitedAvailability(model.Event{}, 10))
	assert.False(t, format.HasLimitedAvailability(model.Event{RemainingAttendeeCapacity: n(0)}, 10))
	assert.True(t, format.HasLimitedAvailability(model.Event{RemainingAttendeeCapacity: n(1)}, 10))
	assert.True(t, format.HasLimitedAvailability(model.Event{RemainingAttendeeCapacity: n(10)}, 10))
	assert.False(t, format.HasLimitedAvailability(model.Event{RemainingAttendeeCapacity: n(11)}, 10))
	assert.True(t, format.HasLimitedAvailability(model.Event{RemainingAttendeeCapacity: n(5)}, 0))
}

func TestPriceLabel(t *testing.T) {
	assert.Equal(t, "", format.PriceLabel("", "GBP"))
	assert.Equal(t, "FREE EVENT", format.PriceLabel("0", "GBP"))
	assert.Equal(t, "From £12.50", format.PriceLabel("12.50", "gbp"))
	assert.Equal(t, "From €8", format.PriceLabel("8", "EUR"))
	assert.Equal(t, "From CHF 20", format.PriceLabel("20", "CHF"))
	assert.Equal(t, "From £5", format.PriceLabel("5", ""))
}
