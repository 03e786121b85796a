package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

const movieColumns = `id, title, runtime_min, rating, description, is_active, created_at, updated_at`

// MovieRepo manages persistence for movies.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the given DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMovie(s rowScanner) (*model.Movie, error) {
	var m model.Movie
	var desc sql.NullString
	if err := s.Scan(&m.ID, &m.Title, &m.RuntimeMin, &m.Rating, &desc, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		d := desc.String
		m.Description = &d
	}
	return &m, nil
}

// Create inserts a movie and reloads it so defaults and timestamps are set.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	const q = `INSERT INTO movies (title, runtime_min, rating, description, is_active) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, m.Title, m.RuntimeMin, m.Rating, m.Description, m.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*m = *got
	return nil
}

// GetByID returns ErrNotFound when no movie has the id.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// List returns movies ordered by title.  activeOnly restricts the result
// to publicly listed movies.
func (r *MovieRepo) List(ctx context.Context, activeOnly bool) ([]model.Movie, error) {
	q := `SELECT ` + movieColumns + ` FROM movies`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY title, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Update overwrites the editable fields of a movie.
func (r *MovieRepo) Update(ctx context.Context, m *model.Movie) error {
	const q = `UPDATE movies SET title = ?, runtime_min = ?, rating = ?, description = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, m.Title, m.RuntimeMin, m.Rating, m.Description, m.IsActive, m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a movie that has never been scheduled.  Movies with
// screenings return ErrConflict; deactivate them instead.
func (r *MovieRepo) Delete(ctx context.Context, id uint64) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM screenings WHERE movie_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
