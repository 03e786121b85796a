package model

import "time"

// Screen is an auditorium. Its seat grid is SeatRows × SeatCols; the
// individual seats live in the seats table and may be deactivated to leave
// aisles or blocked positions.
type Screen struct {
	ID        uint64    `json:"id"`        // screens.id
	Name      string    `json:"name"`      // screens.name
	SeatRows  uint32    `json:"seatRows"`  // screens.seat_rows
	SeatCols  uint32    `json:"seatCols"`  // screens.seat_cols
	IsActive  bool      `json:"isActive"`  // screens.is_active
	CreatedAt time.Time `json:"createdAt"` // screens.created_at
	UpdatedAt time.Time `json:"updatedAt"` // screens.updated_at
}
