package model

import "time"

// Payment statuses.
const (
	PaymentReady   = "READY"
	PaymentDone    = "DONE"
	PaymentAborted = "ABORTED"
)

// Payment tracks one checkout attempt for a booking.  OrderID is the id
// handed to the payment widget; PaymentKey is filled in on confirmation.
type Payment struct {
	ID         uint64     `json:"id"`
	BookingID  uint64     `json:"bookingId"`
	OrderID    string     `json:"orderId"`
	Amount     int64      `json:"amount"`
	Status     string     `json:"status"`
	PaymentKey *string    `json:"paymentKey,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
