// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// BookingConfirmedQueue is the durable queue confirmed bookings are sent to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a booking is paid and its seats
// become SOLD.  It carries enough for downstream consumers to log, notify
// or run analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   uint64   `json:"booking_id"`
	UserID      uint64   `json:"user_id"`
	ScreeningID uint64   `json:"screening_id"`
	MovieID     uint64   `json:"movie_id"`
	MovieTitle  string   `json:"movie_title"`
	ScreenID    uint64   `json:"screen_id"`
	StartsAt    string   `json:"starts_at"`
	SeatLabels  []string `json:"seats"`
	TotalAmount int64    `json:"total_amount"`
	OrderID     string   `json:"order_id"`
	ConfirmedAt string   `json:"confirmed_at"`
}
