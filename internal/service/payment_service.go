package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
)

// Order is the payload the payment widget needs to start a checkout.
type Order struct {
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	OrderName   string `json:"orderName"`
	CustomerKey string `json:"customerKey"`
	SuccessURL  string `json:"successUrl"`
	FailURL     string `json:"failUrl"`
}

// PaymentURLs are the pages the widget redirects to.
type PaymentURLs struct {
	Success string
	Fail    string
}

// PaymentService turns held bookings into paid ones.
type PaymentService struct {
	db         *sql.DB
	bookings   BookingStore
	holds      HoldStore
	seats      SeatStore
	payments   PaymentStore
	screenings ScreeningStore
	movies     MovieStore
	gateway    PaymentGateway
	events     EventPublisher
	urls       PaymentURLs
	log        *slog.Logger
	now        func() time.Time
}

// PaymentDeps groups the collaborators of a PaymentService.
type PaymentDeps struct {
	DB         *sql.DB
	Bookings   BookingStore
	Holds      HoldStore
	Seats      SeatStore
	Payments   PaymentStore
	Screenings ScreeningStore
	Movies     MovieStore
	Gateway    PaymentGateway
	Events     EventPublisher
}

func NewPaymentService(d PaymentDeps, urls PaymentURLs, log *slog.Logger) *PaymentService {
	events := d.Events
	if events == nil {
		events = NopPublisher{}
	}
	return &PaymentService{
		db:         d.DB,
		bookings:   d.Bookings,
		holds:      d.Holds,
		seats:      d.Seats,
		payments:   d.Payments,
		screenings: d.Screenings,
		movies:     d.Movies,
		gateway:    d.Gateway,
		events:     events,
		urls:       urls,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Checkout opens a payment for a held booking of userID and returns the
// widget order.  The booking must be PENDING with an unexpired hold.
func (s *PaymentService) Checkout(ctx context.Context, userID, bookingID uint64) (*Order, error) {
	b, err := s.bookings.GetByIDForUser(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BookingPending {
		return nil, ErrNotPending
	}
	if b.HoldExpiresAt == nil || !b.HoldExpiresAt.After(s.now()) {
		return nil, ErrHoldExpired
	}
	name, err := s.orderName(ctx, b)
	if err != nil {
		return nil, err
	}
	p := &model.Payment{
		BookingID: b.ID,
		OrderID:   "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:    b.TotalAmount,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	s.log.Info("checkout opened", "booking_id", b.ID, "order_id", p.OrderID, "amount", p.Amount)
	return &Order{
		OrderID:     p.OrderID,
		Amount:      p.Amount,
		OrderName:   name,
		CustomerKey: fmt.Sprintf("user_%d", userID),
		SuccessURL:  s.urls.Success,
		FailURL:     s.urls.Fail,
	}, nil
}

// orderName reads like "Dune: Part Two 2매".
func (s *PaymentService) orderName(ctx context.Context, b *model.Booking) (string, error) {
	screening, err := s.screenings.GetByID(ctx, b.ScreeningID)
	if err != nil {
		return "", err
	}
	movie, err := s.movies.GetByID(ctx, screening.MovieID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %d매", movie.Title, len(b.Seats)), nil
}

// Confirm settles an approved payment: the seats become RESERVED, the
// holds are removed, the booking is CONFIRMED and the payment DONE.
// Confirming an already settled order returns the booking again.
func (s *PaymentService) Confirm(ctx context.Context, userID uint64, a PaymentApproval) (*model.Booking, error) {
	now := s.now()
	var (
		payment   *model.Payment
		settled   bool
		declined  error
		confirmed time.Time
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		payment, err = s.payments.GetByOrderIDTx(ctx, tx, a.OrderID)
		if err != nil {
			return err
		}
		b, err := s.bookings.GetForUpdateTx(ctx, tx, payment.BookingID, userID)
		if err != nil {
			return err
		}
		if a.Amount != payment.Amount || a.Amount != b.TotalAmount {
			return ErrAmountMismatch
		}
		if b.Status == model.BookingConfirmed && payment.Status == model.PaymentDone {
			settled = true
			return nil
		}
		if b.Status != model.BookingPending || payment.Status != model.PaymentReady {
			return ErrNotPending
		}
		holds, err := s.holds.ActiveHoldsByBookingTx(ctx, tx, b.ID, now)
		if err != nil {
			return err
		}
		if len(holds) == 0 {
			return ErrHoldExpired
		}

		receipt, err := s.gateway.Confirm(ctx, a)
		if err != nil {
			declined = err
			return err
		}
		confirmed = receipt.ApprovedAt

		seatIDs := make([]uint64, 0, len(holds))
		for _, h := range holds {
			seatIDs = append(seatIDs, h.SeatID)
		}
		if err := s.seats.BulkUpdateStatusTx(ctx, tx, b.ScreeningID, seatIDs, model.SeatReserved); err != nil {
			return fmt.Errorf("reserve seats: %w", err)
		}
		if _, err := s.holds.DeleteByBookingTx(ctx, tx, b.ID); err != nil {
			return fmt.Errorf("delete holds: %w", err)
		}
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingConfirmed); err != nil {
			return err
		}
		return s.payments.MarkDoneTx(ctx, tx, payment.ID, receipt.PaymentKey, receipt.ApprovedAt)
	})
	if err != nil {
		if declined != nil && (errors.Is(declined, ErrPaymentDeclined) || errors.Is(declined, ErrAmountMismatch)) {
			if abortErr := s.payments.MarkAborted(ctx, payment.ID); abortErr != nil {
				s.log.Error("mark payment aborted", "order_id", a.OrderID, "err", abortErr)
			}
			s.log.Warn("payment declined", "order_id", a.OrderID, "err", declined)
		}
		return nil, err
	}

	b, err := s.bookings.GetByIDForUser(ctx, payment.BookingID, userID)
	if err != nil {
		return nil, err
	}
	if settled {
		return b, nil
	}
	s.log.Info("booking confirmed", "booking_id", b.ID, "order_id", a.OrderID, "amount", b.TotalAmount)
	s.publish(ctx, b, a.OrderID, confirmed)
	return b, nil
}

// publish emits booking.confirmed.  Failures are logged only; the booking
// is already paid.
func (s *PaymentService) publish(ctx context.Context, b *model.Booking, orderID string, at time.Time) {
	ev := queue.BookingConfirmedEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		ScreeningID: b.ScreeningID,
		TotalAmount: b.TotalAmount,
		OrderID:     orderID,
		ConfirmedAt: at.UTC().Format(time.RFC3339),
	}
	for _, seat := range b.Seats {
		ev.SeatLabels = append(ev.SeatLabels, fmt.Sprintf("%s%d", seat.RowLabel, seat.SeatNumber))
	}
	if screening, err := s.screenings.GetByID(ctx, b.ScreeningID); err == nil {
		ev.MovieID = screening.MovieID
		ev.ScreenID = screening.ScreenID
		ev.StartsAt = screening.StartsAt.UTC().Format(time.RFC3339)
		if movie, err := s.movies.GetByID(ctx, screening.MovieID); err == nil {
			ev.MovieTitle = movie.Title
		}
	}
	if err := s.events.PublishBookingConfirmed(ctx, ev); err != nil {
		s.log.Warn("publish booking.confirmed failed", "booking_id", b.ID, "err", err)
	}
}
