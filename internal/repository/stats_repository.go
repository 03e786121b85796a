package repository

import (
	"context"
	"database/sql"
)

// MovieStats aggregates confirmed sales for one movie.
type MovieStats struct {
	MovieID  uint64 `json:"movieId"`
	Title    string `json:"title"`
	Bookings int64  `json:"bookings"`
	Seats    int64  `json:"seats"`
	Revenue  int64  `json:"revenue"`
}

// Stats is the admin summary.
type Stats struct {
	Bookings int64        `json:"bookings"`
	Seats    int64        `json:"seats"`
	Revenue  int64        `json:"revenue"`
	Pending  int64        `json:"pending"`
	Movies   []MovieStats `json:"movies"`
}

// StatsRepo runs read-only reporting queries.
type StatsRepo struct {
	db *sql.DB
}

// NewStatsRepo constructs a StatsRepo.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// Summary returns confirmed bookings, seats and revenue per movie ordered
// by revenue, plus the number of bookings still pending payment.
func (r *StatsRepo) Summary(ctx context.Context) (*Stats, error) {
	const q = `SELECT m.id, m.title, COUNT(DISTINCT b.id), COUNT(bs.seat_id), COALESCE(SUM(bs.price), 0)
	           FROM bookings b
	           JOIN screenings sc ON sc.id = b.screening_id
	           JOIN movies m ON m.id = sc.movie_id
	           JOIN booking_seats bs ON bs.booking_id = b.id
	           WHERE b.status = 'CONFIRMED'
	           GROUP BY m.id, m.title
	           ORDER BY 5 DESC, m.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	st := &Stats{Movies: []MovieStats{}}
	for rows.Next() {
		var m MovieStats
		if err := rows.Scan(&m.MovieID, &m.Title, &m.Bookings, &m.Seats, &m.Revenue); err != nil {
			return nil, err
		}
		st.Bookings += m.Bookings
		st.Seats += m.Seats
		st.Revenue += m.Revenue
		st.Movies = append(st.Movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE status = 'PENDING'`).Scan(&st.Pending); err != nil {
		return nil, err
	}
	return st, nil
}
