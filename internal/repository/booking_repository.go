package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// BookingRepo provides CRUD operations for bookings and their seats.
// Bookings group together one or more seats for a particular screening and
// user.  Seats booked under a booking are stored in the booking_seats table
// together with the ticket kind and the price charged.  All timestamp
// fields are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, screening_id, status, total_amount, idempotency_key, hold_expires_at, created_at, updated_at`

func scanBooking(s rowScanner) (*model.Booking, error) {
	var b model.Booking
	var key sql.NullString
	var exp sql.NullTime
	if err := s.Scan(&b.ID, &b.UserID, &b.ScreeningID, &b.Status, &b.TotalAmount, &key, &exp, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.IdempotencyKey = key.String
	if exp.Valid {
		t := exp.Time.UTC()
		b.HoldExpiresAt = &t
	}
	b.Seats = []model.BookingSeat{}
	return &b, nil
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates its generated ID.  A repeated idempotency key
// for the same user yields ErrConflict.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	var key interface{}
	if b.IdempotencyKey != "" {
		key = b.IdempotencyKey
	}
	var exp interface{}
	if b.HoldExpiresAt != nil {
		exp = b.HoldExpiresAt.UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, screening_id, status, total_amount, idempotency_key, hold_expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.UserID, b.ScreeningID, b.Status, b.TotalAmount, key, exp)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// CreateSeatsBulkTx inserts the priced seats of a booking in a single
// statement.  Passing an empty slice has no effect and returns nil.
func (r *BookingRepo) CreateSeatsBulkTx(ctx context.Context, tx *sql.Tx, bookingID, screeningID uint64, seats []model.BookingSeat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, screening_id, seat_id, kind, price) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, bookingID, screeningID, s.SeatID, s.Kind, s.Price)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetForUpdateTx loads and locks a booking.  Returns ErrNotFound when the
// booking does not exist and ErrForbidden when it belongs to someone else.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, bookingID, userID uint64) (*model.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

// UpdateStatusTx moves a booking to status.  Leaving PENDING clears the
// hold expiry.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, hold_expires_at = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, bookingID)
	return err
}

// CancelPendingTx cancels the given bookings that are still PENDING and
// returns how many were cancelled.
func (r *BookingRepo) CancelPendingTx(ctx context.Context, tx *sql.Tx, bookingIDs []uint64) (int64, error) {
	if len(bookingIDs) == 0 {
		return 0, nil
	}
	ph, args := placeholders(bookingIDs)
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'CANCELLED', hold_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE status = 'PENDING' AND id IN (`+ph+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetByIDForUser returns a booking with its seats.  Bookings of other
// users are reported as ErrNotFound so their existence does not leak.
func (r *BookingRepo) GetByIDForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND user_id = ?`, bookingID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSeats(ctx, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// FindByIdempotencyKey returns the booking created by userID with key, or
// ErrNotFound.
func (r *BookingRepo) FindByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? AND idempotency_key = ?`, userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSeats(ctx, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// ListByUser returns all bookings of a user, newest first, with seats.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ptrs []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadSeats(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0, len(ptrs))
	for _, b := range ptrs {
		out = append(out, *b)
	}
	return out, nil
}

// loadSeats populates Seats for all bookings in a single query.
func (r *BookingRepo) loadSeats(ctx context.Context, bookings []*model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	index := make(map[uint64]*model.Booking, len(bookings))
	ids := make([]uint64, 0, len(bookings))
	for _, b := range bookings {
		index[b.ID] = b
		ids = append(ids, b.ID)
	}
	ph, args := placeholders(ids)
	q := `SELECT bs.booking_id, bs.seat_id, se.row_label, se.seat_number, bs.kind, bs.price
	      FROM booking_seats bs
	      JOIN seats se ON se.id = bs.seat_id
	      WHERE bs.booking_id IN (` + ph + `)
	      ORDER BY bs.booking_id, CHAR_LENGTH(se.row_label), se.row_label, se.seat_number`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var bid uint64
		var s model.BookingSeat
		if err := rows.Scan(&bid, &s.SeatID, &s.RowLabel, &s.SeatNumber, &s.Kind, &s.Price); err != nil {
			return err
		}
		if b, ok := index[bid]; ok {
			b.Seats = append(b.Seats, s)
		}
	}
	return rows.Err()
}

// SeatLabel renders "A5" style labels for a list of booking seats.
func SeatLabel(seats []model.BookingSeat) string {
	parts := make([]string, 0, len(seats))
	for _, s := range seats {
		parts = append(parts, s.RowLabel+strconv.FormatUint(uint64(s.SeatNumber), 10))
	}
	return strings.Join(parts, ", ")
}
