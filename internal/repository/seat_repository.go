package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SeatRepo provides methods to work with the physical seats of a screen.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// ListByScreen retrieves all seats of a screen in grid order: rows by label
// length then label (A..Z before AA), seats by number.
func (r *SeatRepo) ListByScreen(ctx context.Context, screenID uint64) ([]model.Seat, error) {
	const q = `SELECT id, screen_id, row_label, seat_number, seat_type, is_active, created_at, updated_at
	           FROM seats
	           WHERE screen_id = ?
	           ORDER BY CHAR_LENGTH(row_label), row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, screenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.Seat{}
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(
			&s.ID, &s.ScreenID, &s.RowLabel, &s.SeatNumber, &s.SeatType,
			&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateByIDAndScreen changes a seat's type and active flag.  Deactivated
// seats appear as BLOCKED on every seat map of the screen.
func (r *SeatRepo) UpdateByIDAndScreen(ctx context.Context, id, screenID uint64, seatType string, isActive bool) error {
	const q = `UPDATE seats SET seat_type = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND screen_id = ?`
	res, err := r.db.ExecContext(ctx, q, seatType, isActive, id, screenID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
