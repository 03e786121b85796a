// Package service holds the booking workflows that span several
// repositories: placing and releasing seat holds, sweeping expired holds
// and taking payment for a held booking.  Each workflow runs its writes in
// a single database transaction.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// Errors returned by the services.  Repository sentinels such as
// repository.ErrNotFound and *repository.SeatsUnavailableError pass
// through unchanged.
var (
	ErrNoSeats           = errors.New("no seats selected")
	ErrTooManySeats      = errors.New("too many seats in one booking")
	ErrHeadcountMismatch = errors.New("ticket count does not match seat count")
	ErrScreeningClosed   = errors.New("screening is not open for booking")
	ErrNotPending        = errors.New("booking is not awaiting payment")
	ErrHoldExpired       = errors.New("seat hold expired")
	ErrAmountMismatch    = errors.New("amount does not match booking total")
	ErrPaymentDeclined   = errors.New("payment declined")
	ErrGatewayDown       = errors.New("payment gateway unavailable")
)

// MaxSeatsPerBooking caps how many seats a single hold may cover.
const MaxSeatsPerBooking = 8

// ScreeningStore reads screenings.
type ScreeningStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Screening, error)
}

// MovieStore reads movies.
type MovieStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
}

// RuleStore returns the pricing rules in force for a screen.
type RuleStore interface {
	ListForScreen(ctx context.Context, screenID uint64) ([]pricing.Rule, error)
}

// SeatStore reads seat maps and moves screening seats between statuses.
type SeatStore interface {
	SeatMap(ctx context.Context, screeningID uint64) (*model.SeatMap, error)
	FilterHoldableSeatsTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seatIDs []uint64) ([]uint64, error)
	BulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seatIDs []uint64, status string) error
}

// HoldStore persists seat holds.
type HoldStore interface {
	ExpireHoldsTx(ctx context.Context, tx *sql.Tx, screeningID uint64, now time.Time) ([]model.SeatHold, error)
	ExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]model.SeatHold, error)
	CreateMultipleTx(ctx context.Context, tx *sql.Tx, holds []model.SeatHold) error
	DeleteByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]uint64, error)
	DeleteByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) error
	ActiveHoldsByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, now time.Time) ([]model.SeatHold, error)
}

// BookingStore persists bookings and their priced seats.
type BookingStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	CreateSeatsBulkTx(ctx context.Context, tx *sql.Tx, bookingID, screeningID uint64, seats []model.BookingSeat) error
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, bookingID, userID uint64) (*model.Booking, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status string) error
	CancelPendingTx(ctx context.Context, tx *sql.Tx, bookingIDs []uint64) (int64, error)
	GetByIDForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
	FindByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// PaymentStore persists checkout attempts.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByOrderIDTx(ctx context.Context, tx *sql.Tx, orderID string) (*model.Payment, error)
	MarkDoneTx(ctx context.Context, tx *sql.Tx, id uint64, paymentKey string, at time.Time) error
	MarkAborted(ctx context.Context, id uint64) error
}

// EventPublisher delivers domain events to the broker.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

var (
	_ ScreeningStore = (*repository.ScreeningRepo)(nil)
	_ MovieStore     = (*repository.MovieRepo)(nil)
	_ RuleStore      = (*repository.PricingRuleRepo)(nil)
	_ SeatStore      = (*repository.ScreeningSeatRepo)(nil)
	_ HoldStore      = (*repository.SeatHoldRepo)(nil)
	_ BookingStore   = (*repository.BookingRepo)(nil)
	_ PaymentStore   = (*repository.PaymentRepo)(nil)
)

// withTx runs fn in a transaction, committing when it returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
