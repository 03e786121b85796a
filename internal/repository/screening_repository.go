// Package repository contains data access logic for screenings.  A screening
// is a scheduled showing of a movie on a screen; creating one also creates
// the per-seat availability rows in screening_seats.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

const screeningColumns = `id, movie_id, screen_id, starts_at, ends_at, base_price, status, created_at, updated_at`

// ScreeningRepo manages persistence for screenings.
type ScreeningRepo struct {
	db *sql.DB
}

// NewScreeningRepo constructs a ScreeningRepo with the given DB handle.
func NewScreeningRepo(db *sql.DB) *ScreeningRepo { return &ScreeningRepo{db: db} }

func scanScreening(s rowScanner) (*model.Screening, error) {
	var sc model.Screening
	if err := s.Scan(&sc.ID, &sc.MovieID, &sc.ScreenID, &sc.StartsAt, &sc.EndsAt, &sc.BasePrice, &sc.Status, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

// overlapsTx reports whether another non-cancelled screening on the screen
// overlaps [start, end).  excludeID is ignored when zero.
func overlapsTx(ctx context.Context, tx *sql.Tx, screenID, excludeID uint64, start, end time.Time) (bool, error) {
	const q = `SELECT id FROM screenings
	           WHERE screen_id = ? AND id <> ? AND status <> 'CANCELLED'
	             AND NOT (ends_at <= ? OR starts_at >= ?)
	           LIMIT 1 FOR UPDATE`
	var id uint64
	err := tx.QueryRowContext(ctx, q, screenID, excludeID, start.UTC(), end.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateWithSeats inserts a screening after checking for schedule overlap
// and creates a FREE screening_seats row for every seat of the screen.
// Overlap yields ErrConflict.
func (r *ScreeningRepo) CreateWithSeats(ctx context.Context, s *model.Screening) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	var clash bool
	if clash, err = overlapsTx(ctx, tx, s.ScreenID, 0, s.StartsAt, s.EndsAt); err != nil {
		return err
	}
	if clash {
		err = ErrConflict
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO screenings (movie_id, screen_id, starts_at, ends_at, base_price) VALUES (?, ?, ?, ?, ?)`,
		s.MovieID, s.ScreenID, s.StartsAt.UTC(), s.EndsAt.UTC(), s.BasePrice)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO screening_seats (screening_id, seat_id) SELECT ?, id FROM seats WHERE screen_id = ?`,
		s.ID, s.ScreenID); err != nil {
		return err
	}
	var got *model.Screening
	if got, err = scanScreening(tx.QueryRowContext(ctx, `SELECT `+screeningColumns+` FROM screenings WHERE id = ?`, s.ID)); err != nil {
		return err
	}
	*s = *got
	return tx.Commit()
}

// GetByID retrieves a screening by its ID.
func (r *ScreeningRepo) GetByID(ctx context.Context, id uint64) (*model.Screening, error) {
	s, err := scanScreening(r.db.QueryRowContext(ctx, `SELECT `+screeningColumns+` FROM screenings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListByMovie returns scheduled screenings of a movie starting at or after
// from, ordered by start time.
func (r *ScreeningRepo) ListByMovie(ctx context.Context, movieID uint64, from time.Time) ([]model.Screening, error) {
	return r.list(ctx, `SELECT `+screeningColumns+` FROM screenings
	                    WHERE movie_id = ? AND status = 'SCHEDULED' AND starts_at >= ?
	                    ORDER BY starts_at, id`, movieID, from.UTC())
}

// ListByScreen returns every screening of a screen ordered by start time.
func (r *ScreeningRepo) ListByScreen(ctx context.Context, screenID uint64) ([]model.Screening, error) {
	return r.list(ctx, `SELECT `+screeningColumns+` FROM screenings WHERE screen_id = ? ORDER BY starts_at, id`, screenID)
}

func (r *ScreeningRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Screening, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Screening{}
	for rows.Next() {
		s, err := scanScreening(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Update reschedules or re-prices a screening.  The screen cannot change.
// Overlap with another screening yields ErrConflict.
func (r *ScreeningRepo) Update(ctx context.Context, s *model.Screening) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	var clash bool
	if clash, err = overlapsTx(ctx, tx, s.ScreenID, s.ID, s.StartsAt, s.EndsAt); err != nil {
		return err
	}
	if clash && s.Status != "CANCELLED" {
		err = ErrConflict
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE screenings SET starts_at = ?, ends_at = ?, base_price = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		s.StartsAt.UTC(), s.EndsAt.UTC(), s.BasePrice, s.Status, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return tx.Commit()
}

// Delete removes a screening that has no bookings.  Its screening_seats
// cascade.  Screenings with bookings return ErrConflict; cancel them instead.
func (r *ScreeningRepo) Delete(ctx context.Context, id uint64) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE screening_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM screenings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
