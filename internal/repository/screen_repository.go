package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ScreenRepo provides methods to create and retrieve screens together with
// their generated seat grid.
type ScreenRepo struct {
	db *sql.DB
}

// NewScreenRepo constructs a ScreenRepo with the given DB handle.
func NewScreenRepo(db *sql.DB) *ScreenRepo { return &ScreenRepo{db: db} }

const screenColumns = `id, name, seat_rows, seat_cols, is_active, created_at, updated_at`

func scanScreen(s rowScanner) (*model.Screen, error) {
	var sc model.Screen
	if err := s.Scan(&sc.ID, &sc.Name, &sc.SeatRows, &sc.SeatCols, &sc.IsActive, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Create inserts a screen and a STANDARD seat for every position of its
// SeatRows × SeatCols grid in one transaction.  A duplicate name yields
// ErrConflict.
func (r *ScreenRepo) Create(ctx context.Context, s *model.Screen) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, `INSERT INTO screens (name, seat_rows, seat_cols) VALUES (?, ?, ?)`, s.Name, s.SeatRows, s.SeatCols)
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
	s.ID = uint64(id)
	if err = insertSeatGridTx(ctx, tx, s.ID, s.SeatRows, s.SeatCols); err != nil {
		return err
	}
	var got *model.Screen
	got, err = scanScreen(tx.QueryRowContext(ctx, `SELECT `+screenColumns+` FROM screens WHERE id = ?`, s.ID))
	if err != nil {
		return err
	}
	*s = *got
	return tx.Commit()
}

// insertSeatGridTx inserts rows × cols seats labelled A1..ZZn.
func insertSeatGridTx(ctx context.Context, tx *sql.Tx, screenID uint64, rows, cols uint32) error {
	if rows == 0 || cols == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO seats (screen_id, row_label, seat_number, seat_type) VALUES `)
	args := make([]interface{}, 0, int(rows*cols)*4)
	for ri := 0; ri < int(rows); ri++ {
		label := model.IndexToRowLabel(ri)
		for n := uint32(1); n <= cols; n++ {
			if len(args) > 0 {
				b.WriteString(",")
			}
			b.WriteString("(?, ?, ?, ?)")
			args = append(args, screenID, label, n, "STANDARD")
		}
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return err
}

// GetByID retrieves a screen by its ID.
func (r *ScreenRepo) GetByID(ctx context.Context, id uint64) (*model.Screen, error) {
	s, err := scanScreen(r.db.QueryRowContext(ctx, `SELECT `+screenColumns+` FROM screens WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// List returns all screens ordered by id.
func (r *ScreenRepo) List(ctx context.Context) ([]model.Screen, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+screenColumns+` FROM screens ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Screen{}
	for rows.Next() {
		s, err := scanScreen(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Update renames or (de)activates a screen.  The grid size is fixed once
// seats exist.
func (r *ScreenRepo) Update(ctx context.Context, s *model.Screen) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE screens SET name = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		s.Name, s.IsActive, s.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a screen without screenings; its seats cascade.
func (r *ScreenRepo) Delete(ctx context.Context, id uint64) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM screenings WHERE screen_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM screens WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
