package model

import "time"

// Screening is a scheduled showing of a movie on a screen.  BasePrice is
// the price in won before pricing rules are applied.  Status is one of
// SCHEDULED, CANCELLED or FINISHED.
type Screening struct {
	ID        uint64    `json:"id"`        // screenings.id
	MovieID   uint64    `json:"movieId"`   // screenings.movie_id
	ScreenID  uint64    `json:"screenId"`  // screenings.screen_id
	StartsAt  time.Time `json:"startsAt"`  // screenings.starts_at
	EndsAt    time.Time `json:"endsAt"`    // screenings.ends_at
	BasePrice int64     `json:"basePrice"` // screenings.base_price
	Status    string    `json:"status"`    // screenings.status
	CreatedAt time.Time `json:"createdAt"` // screenings.created_at
	UpdatedAt time.Time `json:"updatedAt"` // screenings.updated_at
}

// Screening seat statuses as stored in screening_seats.status.
const (
	SeatFree     = "FREE"
	SeatHeld     = "HELD"
	SeatReserved = "RESERVED"
)

// Seat map statuses exposed to clients.
const (
	MapAvailable = "AVAILABLE"
	MapHeld      = "HELD"
	MapSold      = "SOLD"
	MapBlocked   = "BLOCKED"
)

// ScreeningSeat tracks availability of one seat for one screening.
// Version is bumped on every status change.
type ScreeningSeat struct {
	ID          uint64    // screening_seats.id
	ScreeningID uint64    // screening_seats.screening_id
	SeatID      uint64    // screening_seats.seat_id
	Status      string    // screening_seats.status
	Version     uint32    // screening_seats.version
	UpdatedAt   time.Time // screening_seats.updated_at
}

// MapStatus converts a stored seat status into the seat map vocabulary.
// Inactive seats are always BLOCKED regardless of their stored status.
func MapStatus(stored string, active bool) string {
	if !active {
		return MapBlocked
	}
	switch stored {
	case SeatFree:
		return MapAvailable
	case SeatHeld:
		return MapHeld
	case SeatReserved:
		return MapSold
	}
	return MapBlocked
}
