package model

import "time"

// Booking statuses.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Booking groups the seats a user holds or bought for one screening.
// A booking starts PENDING while its seats are held, becomes CONFIRMED
// after payment and CANCELLED when the hold is released or expires.
type Booking struct {
	ID             uint64        `json:"bookingId"`
	UserID         uint64        `json:"userId"`
	ScreeningID    uint64        `json:"screeningId"`
	Status         string        `json:"status"`
	TotalAmount    int64         `json:"amount"`
	IdempotencyKey string        `json:"-"`
	HoldExpiresAt  *time.Time    `json:"expiresAt,omitempty"`
	Seats          []BookingSeat `json:"seats"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// BookingSeat is one priced seat of a booking.
type BookingSeat struct {
	SeatID     uint64 `json:"seatId"`
	RowLabel   string `json:"rowLabel,omitempty"`
	SeatNumber uint32 `json:"seatNumber,omitempty"`
	Kind       string `json:"kind"`
	Price      int64  `json:"price"`
}
