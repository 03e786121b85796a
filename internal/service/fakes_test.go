package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newMock returns a sqlmock database used only for transaction boundaries;
// the stores below keep their state in memory.
func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

// world is the in-memory state shared by the fake stores.
type world struct {
	screenings map[uint64]*model.Screening
	movies     map[uint64]*model.Movie
	rules      []pricing.Rule
	seats      map[uint64]map[uint64]string // screening -> seat -> status
	inactive   map[uint64]bool
	holds      []model.SeatHold
	bookings   map[uint64]*model.Booking
	payments   map[string]*model.Payment
	events     []queue.BookingConfirmedEvent
	nextID     uint64
}

func newWorld() *world {
	w := &world{
		screenings: map[uint64]*model.Screening{},
		movies:     map[uint64]*model.Movie{},
		seats:      map[uint64]map[uint64]string{},
		inactive:   map[uint64]bool{},
		bookings:   map[uint64]*model.Booking{},
		payments:   map[string]*model.Payment{},
		nextID:     100,
	}
	w.movies[1] = &model.Movie{ID: 1, Title: "Dune", RuntimeMin: 155, IsActive: true}
	w.screenings[10] = &model.Screening{ID: 10, MovieID: 1, ScreenID: 2, StartsAt: now.Add(24 * time.Hour), BasePrice: 14000, Status: "SCHEDULED"}
	w.seats[10] = map[uint64]string{}
	for id := uint64(1); id <= 9; id++ {
		w.seats[10][id] = model.SeatFree
	}
	return w
}

func (w *world) id() uint64 { w.nextID++; return w.nextID }

type fakeScreenings struct{ w *world }

func (f fakeScreenings) GetByID(_ context.Context, id uint64) (*model.Screening, error) {
	s, ok := f.w.screenings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

type fakeMovies struct{ w *world }

func (f fakeMovies) GetByID(_ context.Context, id uint64) (*model.Movie, error) {
	m, ok := f.w.movies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

type fakeRules struct{ w *world }

func (f fakeRules) ListForScreen(context.Context, uint64) ([]pricing.Rule, error) {
	return f.w.rules, nil
}

type fakeSeats struct{ w *world }

func (f fakeSeats) SeatMap(_ context.Context, screeningID uint64) (*model.SeatMap, error) {
	statuses, ok := f.w.seats[screeningID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ids := make([]uint64, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	m := &model.SeatMap{ScreeningID: screeningID, Rows: 3, Cols: 3}
	for _, id := range ids {
		m.Seats = append(m.Seats, model.SeatMapSeat{
			ID:     id,
			Row:    model.IndexToRowLabel(int((id - 1) / 3)),
			Number: uint32((id-1)%3 + 1),
			Kind:   "STANDARD",
			Status: model.MapStatus(statuses[id], !f.w.inactive[id]),
		})
	}
	return m, nil
}

func (f fakeSeats) FilterHoldableSeatsTx(_ context.Context, _ *sql.Tx, screeningID uint64, seatIDs []uint64) ([]uint64, error) {
	var out []uint64
	for _, id := range seatIDs {
		if f.w.seats[screeningID][id] == model.SeatFree && !f.w.inactive[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f fakeSeats) BulkUpdateStatusTx(_ context.Context, _ *sql.Tx, screeningID uint64, seatIDs []uint64, status string) error {
	for _, id := range seatIDs {
		f.w.seats[screeningID][id] = status
	}
	return nil
}

type fakeHolds struct{ w *world }

func (f fakeHolds) take(keep func(model.SeatHold) bool) []model.SeatHold {
	var taken, kept []model.SeatHold
	for _, h := range f.w.holds {
		if keep(h) {
			kept = append(kept, h)
		} else {
			taken = append(taken, h)
		}
	}
	f.w.holds = kept
	return taken
}

func (f fakeHolds) ExpireHoldsTx(_ context.Context, _ *sql.Tx, screeningID uint64, now time.Time) ([]model.SeatHold, error) {
	return f.take(func(h model.SeatHold) bool {
		return h.ScreeningID != screeningID || h.ExpiresAt.After(now)
	}), nil
}

func (f fakeHolds) ExpiredTx(_ context.Context, _ *sql.Tx, now time.Time, limit int) ([]model.SeatHold, error) {
	var out []model.SeatHold
	for _, h := range f.w.holds {
		if !h.ExpiresAt.After(now) && len(out) < limit {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f fakeHolds) CreateMultipleTx(_ context.Context, _ *sql.Tx, holds []model.SeatHold) error {
	for _, h := range holds {
		for _, existing := range f.w.holds {
			if existing.ScreeningID == h.ScreeningID && existing.SeatID == h.SeatID {
				return repository.ErrConflict
			}
		}
	}
	for _, h := range holds {
		h.ID = f.w.id()
		f.w.holds = append(f.w.holds, h)
	}
	return nil
}

func (f fakeHolds) DeleteByBookingTx(_ context.Context, _ *sql.Tx, bookingID uint64) ([]uint64, error) {
	seatIDs := []uint64{}
	for _, h := range f.take(func(h model.SeatHold) bool { return h.BookingID != bookingID }) {
		seatIDs = append(seatIDs, h.SeatID)
	}
	return seatIDs, nil
}

func (f fakeHolds) DeleteByIDsTx(_ context.Context, _ *sql.Tx, ids []uint64) error {
	drop := map[uint64]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	f.take(func(h model.SeatHold) bool { return !drop[h.ID] })
	return nil
}

func (f fakeHolds) ActiveHoldsByBookingTx(_ context.Context, _ *sql.Tx, bookingID uint64, now time.Time) ([]model.SeatHold, error) {
	var out []model.SeatHold
	for _, h := range f.w.holds {
		if h.BookingID == bookingID && h.ExpiresAt.After(now) {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeBookings struct{ w *world }

func (f fakeBookings) CreateTx(_ context.Context, _ *sql.Tx, b *model.Booking) error {
	if b.IdempotencyKey != "" {
		for _, existing := range f.w.bookings {
			if existing.UserID == b.UserID && existing.IdempotencyKey == b.IdempotencyKey {
				return repository.ErrConflict
			}
		}
	}
	b.ID = f.w.id()
	cp := *b
	cp.Seats = nil
	f.w.bookings[b.ID] = &cp
	return nil
}

func (f fakeBookings) CreateSeatsBulkTx(_ context.Context, _ *sql.Tx, bookingID, _ uint64, seats []model.BookingSeat) error {
	f.w.bookings[bookingID].Seats = append([]model.BookingSeat(nil), seats...)
	return nil
}

func (f fakeBookings) GetForUpdateTx(_ context.Context, _ *sql.Tx, bookingID, userID uint64) (*model.Booking, error) {
	b, ok := f.w.bookings[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	cp := *b
	return &cp, nil
}

func (f fakeBookings) UpdateStatusTx(_ context.Context, _ *sql.Tx, bookingID uint64, status string) error {
	b := f.w.bookings[bookingID]
	b.Status = status
	b.HoldExpiresAt = nil
	return nil
}

func (f fakeBookings) CancelPendingTx(_ context.Context, _ *sql.Tx, ids []uint64) (int64, error) {
	var n int64
	for _, id := range ids {
		if b, ok := f.w.bookings[id]; ok && b.Status == model.BookingPending {
			b.Status = model.BookingCancelled
			b.HoldExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (f fakeBookings) GetByIDForUser(_ context.Context, bookingID, userID uint64) (*model.Booking, error) {
	b, ok := f.w.bookings[bookingID]
	if !ok || b.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f fakeBookings) FindByIdempotencyKey(_ context.Context, userID uint64, key string) (*model.Booking, error) {
	for _, b := range f.w.bookings {
		if b.UserID == userID && b.IdempotencyKey == key {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeBookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.w.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakePayments struct{ w *world }

func (f fakePayments) Create(_ context.Context, p *model.Payment) error {
	p.ID = f.w.id()
	p.Status = model.PaymentReady
	cp := *p
	f.w.payments[p.OrderID] = &cp
	return nil
}

func (f fakePayments) GetByOrderIDTx(_ context.Context, _ *sql.Tx, orderID string) (*model.Payment, error) {
	p, ok := f.w.payments[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f fakePayments) byID(id uint64) *model.Payment {
	for _, p := range f.w.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f fakePayments) MarkDoneTx(_ context.Context, _ *sql.Tx, id uint64, key string, at time.Time) error {
	p := f.byID(id)
	p.Status = model.PaymentDone
	p.PaymentKey = &key
	p.ApprovedAt = &at
	return nil
}

func (f fakePayments) MarkAborted(_ context.Context, id uint64) error {
	f.byID(id).Status = model.PaymentAborted
	return nil
}

type fakePublisher struct{ w *world }

func (f fakePublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	f.w.events = append(f.w.events, ev)
	return nil
}

func newBookingService(t *testing.T, w *world) (*BookingService, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	svc := NewBookingService(db, fakeScreenings{w}, fakeRules{w}, fakeSeats{w}, fakeHolds{w}, fakeBookings{w}, 5*time.Minute, discardLogger())
	svc.now = func() time.Time { return now }
	return svc, mock
}

// mockTx queues the transaction boundaries the next service call is
// expected to produce.
type mockTx struct{ mock sqlmock.Sqlmock }

func (m *mockTx) commit() {
	m.mock.ExpectBegin()
	m.mock.ExpectCommit()
}

func (m *mockTx) rollback() {
	m.mock.ExpectBegin()
	m.mock.ExpectRollback()
}
