package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// HoldRequest is a customer's request to hold seats of a screening.
type HoldRequest struct {
	UserID         uint64
	ScreeningID    uint64
	SeatIDs        []uint64
	Counts         pricing.Headcount
	IdempotencyKey string
}

// HoldResult is a placed (or replayed) hold.
type HoldResult struct {
	Booking  *model.Booking
	Quote    pricing.Quote
	Replayed bool
}

// BookingService places, releases and sweeps seat holds.
type BookingService struct {
	db         *sql.DB
	screenings ScreeningStore
	rules      RuleStore
	seats      SeatStore
	holds      HoldStore
	bookings   BookingStore
	holdTTL    time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// NewBookingService wires a BookingService.  holdTTL is how long a new hold
// lasts before the sweeper may release it.
func NewBookingService(db *sql.DB, screenings ScreeningStore, rules RuleStore, seats SeatStore, holds HoldStore, bookings BookingStore, holdTTL time.Duration, log *slog.Logger) *BookingService {
	if db == nil || screenings == nil || rules == nil || seats == nil || holds == nil || bookings == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{
		db:         db,
		screenings: screenings,
		rules:      rules,
		seats:      seats,
		holds:      holds,
		bookings:   bookings,
		holdTTL:    holdTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// normalizeSeatIDs drops zero ids and duplicates, keeping first-seen order.
func normalizeSeatIDs(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Hold prices the requested seats and holds them for the configured TTL
// under a new PENDING booking.  A request repeating an idempotency key the
// user already used returns the original booking with Replayed set.  Seats
// that are not FREE yield *repository.SeatsUnavailableError.
func (s *BookingService) Hold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	seatIDs := normalizeSeatIDs(req.SeatIDs)
	switch {
	case len(seatIDs) == 0:
		return nil, ErrNoSeats
	case len(seatIDs) > MaxSeatsPerBooking:
		return nil, ErrTooManySeats
	case req.Counts.Total() != len(seatIDs):
		return nil, ErrHeadcountMismatch
	}

	screening, err := s.screenings.GetByID(ctx, req.ScreeningID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if screening.Status != "SCHEDULED" || !screening.StartsAt.After(now) {
		return nil, ErrScreeningClosed
	}
	rules, err := s.rules.ListForScreen(ctx, screening.ScreenID)
	if err != nil {
		return nil, fmt.Errorf("load pricing rules: %w", err)
	}
	for _, r := range rules {
		if r.ActiveAt(now) && !r.Op.Known() {
			s.log.Warn("pricing rule with unknown operator skipped", "rule_id", r.ID, "op", string(r.Op), "screen_id", screening.ScreenID)
		}
	}
	seats, quote := PriceSeats(screening.BasePrice, rules, seatIDs, req.Counts, now)

	if req.IdempotencyKey != "" {
		if prev, err := s.replay(ctx, req, quote); prev != nil || err != nil {
			return prev, err
		}
	}

	expiresAt := now.Add(s.holdTTL)
	booking := &model.Booking{
		UserID:         req.UserID,
		ScreeningID:    screening.ID,
		Status:         model.BookingPending,
		TotalAmount:    quote.Total,
		IdempotencyKey: req.IdempotencyKey,
		HoldExpiresAt:  &expiresAt,
		Seats:          seats,
	}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.expireScreeningTx(ctx, tx, screening.ID, now); err != nil {
			return err
		}
		holdable, err := s.seats.FilterHoldableSeatsTx(ctx, tx, screening.ID, seatIDs)
		if err != nil {
			return fmt.Errorf("check seat availability: %w", err)
		}
		if missing := difference(seatIDs, holdable); len(missing) > 0 {
			return &repository.SeatsUnavailableError{SeatIDs: missing}
		}
		if err := s.bookings.CreateTx(ctx, tx, booking); err != nil {
			return err
		}
		if err := s.bookings.CreateSeatsBulkTx(ctx, tx, booking.ID, screening.ID, seats); err != nil {
			return fmt.Errorf("create booking seats: %w", err)
		}
		holds, err := repository.GenerateHoldRecords(booking.ID, req.UserID, screening.ID, seatIDs, expiresAt)
		if err != nil {
			return err
		}
		if err := s.holds.CreateMultipleTx(ctx, tx, holds); err != nil {
			return err
		}
		return s.seats.BulkUpdateStatusTx(ctx, tx, screening.ID, seatIDs, model.SeatHeld)
	})
	if err != nil {
		var unavailable *repository.SeatsUnavailableError
		if errors.As(err, &unavailable) {
			s.log.Info("hold rejected", "screening_id", screening.ID, "user_id", req.UserID, "unavailable", unavailable.SeatIDs)
			return nil, err
		}
		// A concurrent request with the same key won the insert.
		if errors.Is(err, repository.ErrConflict) && req.IdempotencyKey != "" {
			if prev, rerr := s.replay(ctx, req, quote); prev != nil || rerr != nil {
				return prev, rerr
			}
		}
		return nil, err
	}
	s.log.Info("seats held", "booking_id", booking.ID, "screening_id", screening.ID, "user_id", req.UserID, "seats", len(seatIDs), "amount", booking.TotalAmount)
	return &HoldResult{Booking: booking, Quote: quote}, nil
}

// replay returns the booking already created with the request's key, or
// nil when there is none.
func (s *BookingService) replay(ctx context.Context, req HoldRequest, quote pricing.Quote) (*HoldResult, error) {
	prev, err := s.bookings.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if prev.ScreeningID != req.ScreeningID {
		return nil, fmt.Errorf("idempotency key reused for another screening: %w", repository.ErrConflict)
	}
	return &HoldResult{Booking: prev, Quote: quote, Replayed: true}, nil
}

// difference returns the ids in want that are missing from got.
func difference(want, got []uint64) []uint64 {
	have := make(map[uint64]struct{}, len(got))
	for _, id := range got {
		have[id] = struct{}{}
	}
	var missing []uint64
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// expireScreeningTx releases expired holds of one screening: their seats
// go back to FREE and their bookings are cancelled.
func (s *BookingService) expireScreeningTx(ctx context.Context, tx *sql.Tx, screeningID uint64, now time.Time) error {
	expired, err := s.holds.ExpireHoldsTx(ctx, tx, screeningID, now)
	if err != nil {
		return fmt.Errorf("expire holds: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}
	seatIDs, bookingIDs := splitHolds(expired)
	if err := s.seats.BulkUpdateStatusTx(ctx, tx, screeningID, seatIDs, model.SeatFree); err != nil {
		return fmt.Errorf("free expired seats: %w", err)
	}
	if _, err := s.bookings.CancelPendingTx(ctx, tx, bookingIDs); err != nil {
		return fmt.Errorf("cancel expired bookings: %w", err)
	}
	return nil
}

func splitHolds(holds []model.SeatHold) (seatIDs, bookingIDs []uint64) {
	seen := map[uint64]bool{}
	for _, h := range holds {
		seatIDs = append(seatIDs, h.SeatID)
		if !seen[h.BookingID] {
			seen[h.BookingID] = true
			bookingIDs = append(bookingIDs, h.BookingID)
		}
	}
	return seatIDs, bookingIDs
}

// SeatMap returns the current grid of a screening after releasing any
// expired holds on it.
func (s *BookingService) SeatMap(ctx context.Context, screeningID uint64) (*model.SeatMap, error) {
	if _, err := s.screenings.GetByID(ctx, screeningID); err != nil {
		return nil, err
	}
	now := s.now()
	if err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.expireScreeningTx(ctx, tx, screeningID, now)
	}); err != nil {
		return nil, err
	}
	return s.seats.SeatMap(ctx, screeningID)
}

// Release gives up the hold of a PENDING booking owned by userID: the holds
// are deleted, the seats become FREE and the booking is CANCELLED.
func (s *BookingService) Release(ctx context.Context, userID, bookingID uint64) error {
	var released int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID, userID)
		if err != nil {
			return err
		}
		if b.Status != model.BookingPending {
			return ErrNotPending
		}
		seatIDs, err := s.holds.DeleteByBookingTx(ctx, tx, bookingID)
		if err != nil {
			return fmt.Errorf("delete holds: %w", err)
		}
		released = len(seatIDs)
		if err := s.seats.BulkUpdateStatusTx(ctx, tx, b.ScreeningID, seatIDs, model.SeatFree); err != nil {
			return fmt.Errorf("free seats: %w", err)
		}
		return s.bookings.UpdateStatusTx(ctx, tx, bookingID, model.BookingCancelled)
	})
	if err != nil {
		return err
	}
	s.log.Info("hold released", "booking_id", bookingID, "user_id", userID, "seats", released)
	return nil
}

// Get returns one booking of userID.
func (s *BookingService) Get(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
	return s.bookings.GetByIDForUser(ctx, bookingID, userID)
}

// ListMine returns the bookings of userID, newest first.
func (s *BookingService) ListMine(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// sweepBatch bounds how many expired holds one sweep transaction handles.
const sweepBatch = 500

// SweepExpired releases expired holds across all screenings and returns the
// number of holds released.
func (s *BookingService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	total := 0
	for {
		var n int
		err := withTx(ctx, s.db, func(tx *sql.Tx) error {
			expired, err := s.holds.ExpiredTx(ctx, tx, now, sweepBatch)
			if err != nil {
				return err
			}
			n = len(expired)
			if n == 0 {
				return nil
			}
			byScreening := map[uint64][]uint64{}
			ids := make([]uint64, 0, n)
			for _, h := range expired {
				byScreening[h.ScreeningID] = append(byScreening[h.ScreeningID], h.SeatID)
				ids = append(ids, h.ID)
			}
			if err := s.holds.DeleteByIDsTx(ctx, tx, ids); err != nil {
				return err
			}
			for screeningID, seatIDs := range byScreening {
				if err := s.seats.BulkUpdateStatusTx(ctx, tx, screeningID, seatIDs, model.SeatFree); err != nil {
					return err
				}
			}
			_, bookingIDs := splitHolds(expired)
			_, err = s.bookings.CancelPendingTx(ctx, tx, bookingIDs)
			return err
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < sweepBatch {
			return total, nil
		}
	}
}
