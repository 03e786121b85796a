package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SeatHoldRepo provides data access to the seat_holds table.  It is
// responsible for creating, listing and deleting seat holds.  All methods
// behave with respect to UTC timestamps – callers must ensure that
// expiration comparisons are performed in UTC.
type SeatHoldRepo struct {
	db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

const holdColumns = `id, booking_id, user_id, screening_id, seat_id, hold_token, expires_at, created_at`

func scanHolds(rows *sql.Rows) ([]model.SeatHold, error) {
	defer rows.Close()
	holds := []model.SeatHold{}
	for rows.Next() {
		var h model.SeatHold
		if err := rows.Scan(&h.ID, &h.BookingID, &h.UserID, &h.ScreeningID, &h.SeatID, &h.HoldToken, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holds, nil
}

// ExpireHoldsTx removes the expired holds of one screening and returns
// them so that the caller can free their seats and cancel their bookings.
// A hold is expired when expires_at <= now (UTC).
func (r *SeatHoldRepo) ExpireHoldsTx(ctx context.Context, tx *sql.Tx, screeningID uint64, now time.Time) ([]model.SeatHold, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+holdColumns+` FROM seat_holds WHERE screening_id = ? AND expires_at <= ? FOR UPDATE`,
		screeningID, now.UTC())
	if err != nil {
		return nil, err
	}
	holds, err := scanHolds(rows)
	if err != nil || len(holds) == 0 {
		return holds, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM seat_holds WHERE screening_id = ? AND expires_at <= ?`,
		screeningID, now.UTC()); err != nil {
		return nil, err
	}
	return holds, nil
}

// ExpiredTx returns up to limit expired holds across all screenings,
// oldest first, locking them for the sweeper.
func (r *SeatHoldRepo) ExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]model.SeatHold, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+holdColumns+` FROM seat_holds WHERE expires_at <= ? ORDER BY expires_at, id LIMIT ? FOR UPDATE`,
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return scanHolds(rows)
}

// randomToken generates a random hexadecimal string of length n*2 bytes.
// It is used to populate the hold_token column.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateHoldRecords builds seat hold records for the given booking and
// seat IDs.  A new random token is generated for each seat.
func GenerateHoldRecords(bookingID, userID, screeningID uint64, seatIDs []uint64, expiresAt time.Time) ([]model.SeatHold, error) {
	holds := make([]model.SeatHold, 0, len(seatIDs))
	for _, sid := range seatIDs {
		token, err := randomToken(32)
		if err != nil {
			return nil, err
		}
		holds = append(holds, model.SeatHold{
			BookingID:   bookingID,
			UserID:      userID,
			ScreeningID: screeningID,
			SeatID:      sid,
			HoldToken:   token,
			ExpiresAt:   expiresAt,
		})
	}
	return holds, nil
}

// CreateMultipleTx inserts multiple seat_holds within the provided
// transaction.  The unique (screening_id, seat_id) key turns a concurrent
// double hold into ErrConflict.  Passing an empty slice has no effect.
func (r *SeatHoldRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, holds []model.SeatHold) error {
	if len(holds) == 0 {
		return nil
	}
	query := `INSERT INTO seat_holds (booking_id, user_id, screening_id, seat_id, hold_token, expires_at) VALUES `
	args := make([]interface{}, 0, len(holds)*6)
	for i, h := range holds {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, h.BookingID, h.UserID, h.ScreeningID, h.SeatID, h.HoldToken, h.ExpiresAt.UTC())
	}
	_, err := tx.ExecContext(ctx, query, args...)
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

// DeleteByBookingTx removes all holds of a booking and returns the seat IDs
// that were released.
func (r *SeatHoldRepo) DeleteByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT seat_id FROM seat_holds WHERE booking_id = ? ORDER BY seat_id`, bookingID)
	if err != nil {
		return nil, err
	}
	var seatIDs []uint64
	for rows.Next() {
		var sid uint64
		if scanErr := rows.Scan(&sid); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		seatIDs = append(seatIDs, sid)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(seatIDs) == 0 {
		return []uint64{}, nil
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM seat_holds WHERE booking_id = ?`, bookingID); err != nil {
		return nil, err
	}
	return seatIDs, nil
}

// DeleteByIDsTx removes holds by primary key.
func (r *SeatHoldRepo) DeleteByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	ph, args := placeholders(ids)
	_, err := tx.ExecContext(ctx, `DELETE FROM seat_holds WHERE id IN (`+ph+`)`, args...)
	return err
}

// ActiveHoldsByBookingTx retrieves the non-expired holds of a booking.
// Use this when confirming a payment to ensure the seats are still held.
func (r *SeatHoldRepo) ActiveHoldsByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, now time.Time) ([]model.SeatHold, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+holdColumns+` FROM seat_holds WHERE booking_id = ? AND expires_at > ? FOR UPDATE`,
		bookingID, now.UTC())
	if err != nil {
		return nil, err
	}
	return scanHolds(rows)
}
