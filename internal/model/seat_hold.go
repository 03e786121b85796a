package model

import "time"

// SeatHold represents a temporary hold on a seat during the
// checkout process.  Holds prevent concurrent bookings from
// grabbing the same seat while a user is paying.  Holds expire
// at their ExpiresAt timestamp and are swept periodically.
//
// Fields:
//  ID          – primary key identifier.
//  BookingID   – booking the hold belongs to.
//  UserID      – user who holds the seat.
//  ScreeningID – screening for which the seat is held.
//  SeatID      – seat being held.
//  HoldToken   – unique token for correlation in logs.
//  ExpiresAt   – when the hold expires.
type SeatHold struct {
	ID          uint64    // seat_holds.id
	BookingID   uint64    // seat_holds.booking_id
	UserID      uint64    // seat_holds.user_id
	ScreeningID uint64    // seat_holds.screening_id
	SeatID      uint64    // seat_holds.seat_id
	HoldToken   string    // seat_holds.hold_token
	ExpiresAt   time.Time // seat_holds.expires_at
	CreatedAt   time.Time // seat_holds.created_at
}
