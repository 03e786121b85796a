package model

import "time"

// Seat describes a physical seat in a screen.  Seats are
// uniquely identified by their screen, row label and seat number.
// An inactive seat is rendered as BLOCKED on every seat map.
//
// Fields:
//  ID         – primary key identifier.
//  ScreenID   – screen to which this seat belongs.
//  RowLabel   – letter or string designating the row (A, B, ..., AA).
//  SeatNumber – 1-based number of the seat within the row.
//  SeatType   – STANDARD, PREMIUM or ACCESSIBLE.
//  IsActive   – whether the seat can be sold.
type Seat struct {
	ID         uint64    `json:"id"`         // seats.id
	ScreenID   uint64    `json:"screenId"`   // seats.screen_id
	RowLabel   string    `json:"rowLabel"`   // seats.row_label
	SeatNumber uint32    `json:"seatNumber"` // seats.seat_number
	SeatType   string    `json:"seatType"`   // seats.seat_type
	IsActive   bool      `json:"isActive"`   // seats.is_active
	CreatedAt  time.Time `json:"createdAt"`  // seats.created_at
	UpdatedAt  time.Time `json:"updatedAt"`  // seats.updated_at
}
