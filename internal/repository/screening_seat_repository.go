package repository // repository for screening seat availability

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ScreeningSeatRepo encapsulates database operations for screening_seats:
// the seat map read and the status transitions FREE -> HELD -> RESERVED.
type ScreeningSeatRepo struct {
	db *sql.DB
}

// NewScreeningSeatRepo constructs a ScreeningSeatRepo given a DB handle.
func NewScreeningSeatRepo(db *sql.DB) *ScreeningSeatRepo {
	return &ScreeningSeatRepo{db: db}
}

// SeatMap loads the grid of a screening.  Seats without a screening_seats
// row (added to the screen after scheduling) count as FREE; inactive seats
// are BLOCKED.  Returns ErrNotFound for an unknown screening.
func (r *ScreeningSeatRepo) SeatMap(ctx context.Context, screeningID uint64) (*model.SeatMap, error) {
	m := &model.SeatMap{ScreeningID: screeningID, Seats: []model.SeatMapSeat{}}
	var screenID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT sc.screen_id, s.seat_rows, s.seat_cols
		 FROM screenings sc JOIN screens s ON s.id = sc.screen_id
		 WHERE sc.id = ?`, screeningID).Scan(&screenID, &m.Rows, &m.Cols)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	const q = `SELECT se.id, se.row_label, se.seat_number, se.seat_type, se.is_active, COALESCE(ss.status, 'FREE')
	           FROM seats se
	           LEFT JOIN screening_seats ss ON ss.seat_id = se.id AND ss.screening_id = ?
	           WHERE se.screen_id = ?
	           ORDER BY CHAR_LENGTH(se.row_label), se.row_label, se.seat_number`
	rows, err := r.db.QueryContext(ctx, q, screeningID, screenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.SeatMapSeat
		var active bool
		var stored string
		if err := rows.Scan(&s.ID, &s.Row, &s.Number, &s.Kind, &active, &stored); err != nil {
			return nil, err
		}
		s.Status = model.MapStatus(stored, active)
		m.Seats = append(m.Seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// FilterHoldableSeatsTx returns the subset of seatIDs that are FREE and
// active for the screening, locking their rows until the transaction ends.
func (r *ScreeningSeatRepo) FilterHoldableSeatsTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seatIDs []uint64) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return []uint64{}, nil
	}
	ph, args := placeholders(seatIDs)
	q := `SELECT ss.seat_id
	      FROM screening_seats ss
	      JOIN seats se ON se.id = ss.seat_id
	      WHERE ss.screening_id = ? AND ss.status = 'FREE' AND se.is_active = 1
	        AND ss.seat_id IN (` + ph + `)
	      ORDER BY ss.seat_id
	      FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, append([]interface{}{screeningID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]uint64, 0, len(seatIDs))
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// BulkUpdateStatusTx sets status on the given seats of a screening and
// bumps their version.
func (r *ScreeningSeatRepo) BulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seatIDs []uint64, status string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	ph, args := placeholders(seatIDs)
	q := `UPDATE screening_seats SET status = ?, version = version + 1
	      WHERE screening_id = ? AND seat_id IN (` + ph + `)`
	_, err := tx.ExecContext(ctx, q, append([]interface{}{status, screeningID}, args...)...)
	return err
}
