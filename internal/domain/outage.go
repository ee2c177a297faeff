package domain

import "errors"

// ErrNotFound is returned when an operation targets a record id that does not
// exist. Storage adapters translate their driver's absence signal into this
// sentinel so callers can match it with errors.Is.
var ErrNotFound = errors.New("not found")

// Neighborhood is an administrative area of the city that shares one outage
// schedule. Rows with equal identity keys (see IdentityKey) are duplicates of
// the same logical neighborhood.
type Neighborhood struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	District string `json:"district"`
}

// Outage is one scheduled electricity-unavailability window for a
// neighborhood on a calendar date. The window covers [StartHour, EndHour).
// ID is zero for records not yet persisted.
type Outage struct {
	ID             int64   `json:"id"`
	NeighborhoodID int64   `json:"neighborhoodId"`
	Date           string  `json:"date"`
	StartHour      float64 `json:"startHour"`
	EndHour        float64 `json:"endHour"`
	Reason         string  `json:"reason,omitempty"`
}

// Schedule is the read-side view for one logical neighborhood on one date:
// the representative row plus its merged, start-sorted outage windows.
// Outages is empty (never nil) when no outage is scheduled.
type Schedule struct {
	Neighborhood Neighborhood `json:"neighborhood"`
	Outages      []Outage     `json:"outages"`
}
