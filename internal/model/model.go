package model

// Event is a single event as returned by the venue events API (or built from
// an ICS VEVENT). Dates are RFC3339 strings exactly as the upstream sends them;
// formatting into display strings happens in internal/format.
type Event struct {
	ID               string `json:"id"`
	Slug             string `json:"slug,omitempty"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	ShortDescription string `json:"shortDescription,omitempty"`

	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`
	DoorTime  string `json:"doorTime,omitempty"`

	Performer *Performer `json:"performer,omitempty"`
	Offers    *Offers    `json:"offers,omitempty"`
	Category  *Category  `json:"category,omitempty"`

	// RemainingAttendeeCapacity is nil when the venue does not track seats.
	RemainingAttendeeCapacity *int `json:"remainingAttendeeCapacity,omitempty"`
}

type Performer struct {
	Name string `json:"name"`
}

// Offers carries the headline price. Price is a decimal string; "0" means free.
type Offers struct {
	Price         string `json:"price"`
	PriceCurrency string `json:"priceCurrency,omitempty"`
}

type Category struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// DisplayEvent is the flattened view of an Event used by the card grid.
// Static fallback entries only populate ID, Name, Time, Description and Link.
type DisplayEvent struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Time                string    `json:"time"`
	DoorTime            string    `json:"doorTime,omitempty"`
	Description         string    `json:"description"`
	Link                string    `json:"link"`
	Price               string    `json:"price,omitempty"`
	PriceCurrency       string    `json:"priceCurrency,omitempty"`
	SoldOut             bool      `json:"soldOut"`
	RemainingSeats      *int      `json:"remainingSeats,omitempty"`
	LimitedAvailability bool      `json:"limitedAvailability"`
	Performer           string    `json:"performer,omitempty"`
	Category            *Category `json:"category,omitempty"`
}

// ShowRemainingSeats reports whether the "N seats available" line applies.
// It never overlaps with the limited-availability badge.
func (d DisplayEvent) ShowRemainingSeats() bool {
	return d.RemainingSeats != nil && *d.RemainingSeats > 0 && !d.LimitedAvailability
}

// ShowLimited reports whether the limited-availability badge applies.
func (d DisplayEvent) ShowLimited() bool {
	return d.LimitedAvailability && !d.SoldOut
}

// Free reports whether the offer price is exactly "0".
func (d DisplayEvent) Free() bool {
	return d.Price == "0"
}

// BadgeBackground is the category colour at 0x20 alpha, used behind the badge text.
func (c Category) BadgeBackground() string {
	if c.Color == "" {
		return ""
	}
	return c.Color + "20"
}
