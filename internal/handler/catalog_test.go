package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

type memCatalog struct {
	movies     map[uint64]model.Movie
	screens    map[uint64]model.Screen
	seats      []model.Seat
	screenings map[uint64]model.Screening
	nextID     uint64
	overlap    bool
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		movies: map[uint64]model.Movie{
			1: {ID: 1, Title: "Dune", RuntimeMin: 155, Rating: "12", IsActive: true},
			2: {ID: 2, Title: "Old", RuntimeMin: 90, Rating: "ALL", IsActive: false},
		},
		screens: map[uint64]model.Screen{
			3: {ID: 3, Name: "IMAX", SeatRows: 2, SeatCols: 2, IsActive: true},
		},
		seats: []model.Seat{
			{ID: 11, ScreenID: 3, RowLabel: "A", SeatNumber: 1, SeatType: "STANDARD", IsActive: true},
		},
		screenings: map[uint64]model.Screening{},
		nextID:     100,
	}
}

type catMovies struct{ *memCatalog }

func (m catMovies) Create(_ context.Context, mv *model.Movie) error {
	m.nextID++
	mv.ID = m.nextID
	m.movies[mv.ID] = *mv
	return nil
}

func (m catMovies) GetByID(_ context.Context, id uint64) (*model.Movie, error) {
	mv, ok := m.movies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &mv, nil
}

func (m catMovies) List(_ context.Context, activeOnly bool) ([]model.Movie, error) {
	out := []model.Movie{}
	for id := uint64(1); id <= m.nextID; id++ {
		if mv, ok := m.movies[id]; ok && (mv.IsActive || !activeOnly) {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m catMovies) Update(_ context.Context, mv *model.Movie) error {
	if _, ok := m.movies[mv.ID]; !ok {
		return repository.ErrNotFound
	}
	m.movies[mv.ID] = *mv
	return nil
}

func (m catMovies) Delete(_ context.Context, id uint64) error {
	if _, ok := m.movies[id]; !ok {
		return repository.ErrNotFound
	}
	for _, s := range m.screenings {
		if s.MovieID == id {
			return repository.ErrConflict
		}
	}
	delete(m.movies, id)
	return nil
}

type catScreens struct{ *memCatalog }

func (m catScreens) Create(_ context.Context, s *model.Screen) error {
	m.nextID++
	s.ID = m.nextID
	m.screens[s.ID] = *s
	return nil
}

func (m catScreens) GetByID(_ context.Context, id uint64) (*model.Screen, error) {
	s, ok := m.screens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m catScreens) List(context.Context) ([]model.Screen, error) {
	out := []model.Screen{}
	for _, s := range m.screens {
		out = append(out, s)
	}
	return out, nil
}

func (m catScreens) Update(_ context.Context, s *model.Screen) error {
	m.screens[s.ID] = *s
	return nil
}

func (m catScreens) Delete(_ context.Context, id uint64) error {
	delete(m.screens, id)
	return nil
}

type catSeats struct{ *memCatalog }

func (m catSeats) ListByScreen(_ context.Context, screenID uint64) ([]model.Seat, error) {
	out := []model.Seat{}
	for _, s := range m.seats {
		if s.ScreenID == screenID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m catSeats) UpdateByIDAndScreen(_ context.Context, id, screenID uint64, seatType string, isActive bool) error {
	for i, s := range m.seats {
		if s.ID == id && s.ScreenID == screenID {
			m.seats[i].SeatType, m.seats[i].IsActive = seatType, isActive
			return nil
		}
	}
	return repository.ErrNotFound
}

type catScreenings struct{ *memCatalog }

func (m catScreenings) CreateWithSeats(_ context.Context, s *model.Screening) error {
	if m.overlap {
		return repository.ErrConflict
	}
	m.nextID++
	s.ID = m.nextID
	m.screenings[s.ID] = *s
	return nil
}

func (m catScreenings) GetByID(_ context.Context, id uint64) (*model.Screening, error) {
	s, ok := m.screenings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m catScreenings) ListByMovie(_ context.Context, movieID uint64, from time.Time) ([]model.Screening, error) {
	out := []model.Screening{}
	for _, s := range m.screenings {
		if s.MovieID == movieID && !s.StartsAt.Before(from) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m catScreenings) ListByScreen(_ context.Context, screenID uint64) ([]model.Screening, error) {
	out := []model.Screening{}
	for _, s := range m.screenings {
		if s.ScreenID == screenID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m catScreenings) Update(_ context.Context, s *model.Screening) error {
	if m.overlap {
		return repository.ErrConflict
	}
	m.screenings[s.ID] = *s
	return nil
}

func (m catScreenings) Delete(_ context.Context, id uint64) error {
	if _, ok := m.screenings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.screenings, id)
	return nil
}

type catStats struct{}

func (catStats) Summary(context.Context) (*repository.Stats, error) {
	return &repository.Stats{Bookings: 2, Seats: 5, Revenue: 70000, Movies: []repository.MovieStats{
		{MovieID: 1, Title: "Dune", Bookings: 2, Seats: 5, Revenue: 70000},
	}}, nil
}

func newCatalogHandler(m *memCatalog) (*CatalogHandler, *int) {
	h := NewCatalogHandler(catMovies{m}, catScreens{m}, catSeats{m}, catScreenings{m}, catStats{}, discardLogger())
	h.now = func() time.Time { return testNow }
	changes := 0
	h.Changed = func(context.Context) { changes++ }
	return h, &changes
}

func TestPublicMovies_HidesInactive(t *testing.T) {
	h, _ := newCatalogHandler(newMemCatalog())

	rec := call(http.MethodGet, "/v1/movies", "/v1/movies", "", nil, 0, h.ListMovies)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "Dune", items[0].(map[string]interface{})["title"])

	rec = call(http.MethodGet, "/v1/movies/:id", "/v1/movies/2", "", nil, 0, h.GetMovie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(http.MethodGet, "/v1/admin/movies", "/v1/admin/movies", "", nil, 1, h.AdminListMovies)
	assert.Len(t, decode(t, rec)["items"], 2)
}

func TestCreateMovie(t *testing.T) {
	m := newMemCatalog()
	h, changes := newCatalogHandler(m)

	rec := call(http.MethodPost, "/v1/admin/movies", "/v1/admin/movies",
		`{"title":"  Arrival ","runtimeMin":116,"rating":"12"}`, nil, 1, h.CreateMovie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Arrival", m.movies[101].Title)
	assert.True(t, m.movies[101].IsActive)
	assert.Equal(t, 1, *changes)

	for _, body := range []string{
		`{"runtimeMin":100}`,
		`{"title":"X","runtimeMin":0}`,
		`{"title":"X","runtimeMin":100,"rating":"R"}`,
	} {
		rec = call(http.MethodPost, "/v1/admin/movies", "/v1/admin/movies", body, nil, 1, h.CreateMovie)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, 1, *changes)
}

func TestDeleteMovie_WithScreeningsConflicts(t *testing.T) {
	m := newMemCatalog()
	m.screenings[50] = model.Screening{ID: 50, MovieID: 1, ScreenID: 3}
	h, _ := newCatalogHandler(m)

	rec := call(http.MethodDelete, "/v1/admin/movies/:id", "/v1/admin/movies/1", "", nil, 1, h.DeleteMovie)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = call(http.MethodDelete, "/v1/admin/movies/:id", "/v1/admin/movies/2", "", nil, 1, h.DeleteMovie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateScreen_Validation(t *testing.T) {
	m := newMemCatalog()
	h, _ := newCatalogHandler(m)

	rec := call(http.MethodPost, "/v1/admin/screens", "/v1/admin/screens", `{"name":"Hall 2","rows":10,"cols":12}`, nil, 1, h.CreateScreen)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint32(12), m.screens[101].SeatCols)

	rec = call(http.MethodPost, "/v1/admin/screens", "/v1/admin/screens", `{"name":"Huge","rows":61,"cols":1}`, nil, 1, h.CreateScreen)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSeat(t *testing.T) {
	m := newMemCatalog()
	h, _ := newCatalogHandler(m)

	rec := call(http.MethodPut, "/v1/admin/screens/:id/seats/:seatId", "/v1/admin/screens/3/seats/11",
		`{"seatType":"premium","isActive":false}`, nil, 1, h.UpdateSeat)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PREMIUM", m.seats[0].SeatType)
	assert.False(t, m.seats[0].IsActive)

	rec = call(http.MethodPut, "/v1/admin/screens/:id/seats/:seatId", "/v1/admin/screens/4/seats/11", `{}`, nil, 1, h.UpdateSeat)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(http.MethodPut, "/v1/admin/screens/:id/seats/:seatId", "/v1/admin/screens/3/seats/11", `{"seatType":"VIP"}`, nil, 1, h.UpdateSeat)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateScreening_DerivesEnd(t *testing.T) {
	m := newMemCatalog()
	h, changes := newCatalogHandler(m)

	rec := call(http.MethodPost, "/v1/admin/screenings", "/v1/admin/screenings",
		`{"movieId":1,"screenId":3,"startsAt":"2026-10-20T10:00:00Z","basePrice":14000}`, nil, 1, h.CreateScreening)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s := m.screenings[101]
	assert.Equal(t, time.Date(2026, 10, 20, 12, 35, 0, 0, time.UTC), s.EndsAt)
	assert.Equal(t, "SCHEDULED", s.Status)
	assert.Equal(t, 1, *changes)
}

func TestCreateScreening_Rejects(t *testing.T) {
	m := newMemCatalog()
	h, _ := newCatalogHandler(m)
	cases := map[string]struct {
		body string
		code int
	}{
		"past start":     {`{"movieId":1,"screenId":3,"startsAt":"2026-10-19T10:00:00Z","basePrice":14000}`, http.StatusBadRequest},
		"inactive movie": {`{"movieId":2,"screenId":3,"startsAt":"2026-10-20T10:00:00Z","basePrice":14000}`, http.StatusBadRequest},
		"no price":       {`{"movieId":1,"screenId":3,"startsAt":"2026-10-20T10:00:00Z"}`, http.StatusBadRequest},
		"end first":      {`{"movieId":1,"screenId":3,"startsAt":"2026-10-20T10:00:00Z","endsAt":"2026-10-20T09:00:00Z","basePrice":1}`, http.StatusBadRequest},
		"missing screen": {`{"movieId":1,"screenId":9,"startsAt":"2026-10-20T10:00:00Z","basePrice":1}`, http.StatusNotFound},
	}
	for name, tc := range cases {
		rec := call(http.MethodPost, "/v1/admin/screenings", "/v1/admin/screenings", tc.body, nil, 1, h.CreateScreening)
		assert.Equal(t, tc.code, rec.Code, name)
	}

	m.overlap = true
	rec := call(http.MethodPost, "/v1/admin/screenings", "/v1/admin/screenings",
		`{"movieId":1,"screenId":3,"startsAt":"2026-10-20T10:00:00Z","basePrice":14000}`, nil, 1, h.CreateScreening)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateScreening(t *testing.T) {
	m := newMemCatalog()
	start := testNow.Add(48 * time.Hour)
	m.screenings[50] = model.Screening{ID: 50, MovieID: 1, ScreenID: 3, StartsAt: start, EndsAt: start.Add(155 * time.Minute), BasePrice: 14000, Status: "SCHEDULED"}
	h, _ := newCatalogHandler(m)

	rec := call(http.MethodPut, "/v1/admin/screenings/:id", "/v1/admin/screenings/50", `{"basePrice":15000,"status":"cancelled"}`, nil, 1, h.UpdateScreening)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(15000), m.screenings[50].BasePrice)
	assert.Equal(t, "CANCELLED", m.screenings[50].Status)
	assert.Equal(t, start, m.screenings[50].StartsAt)

	rec = call(http.MethodPut, "/v1/admin/screenings/:id", "/v1/admin/screenings/50", `{"status":"DONE"}`, nil, 1, h.UpdateScreening)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMovieScreenings_UpcomingOnly(t *testing.T) {
	m := newMemCatalog()
	m.screenings[50] = model.Screening{ID: 50, MovieID: 1, StartsAt: testNow.Add(time.Hour)}
	m.screenings[51] = model.Screening{ID: 51, MovieID: 1, StartsAt: testNow.Add(-time.Hour)}
	h, _ := newCatalogHandler(m)

	rec := call(http.MethodGet, "/v1/movies/:id/screenings", "/v1/movies/1/screenings", "", nil, 0, h.MovieScreenings)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, float64(50), items[0].(map[string]interface{})["id"])
}

func TestGetStats(t *testing.T) {
	h, _ := newCatalogHandler(newMemCatalog())
	rec := call(http.MethodGet, "/v1/admin/stats", "/v1/admin/stats", "", nil, 1, h.GetStats)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(70000), body["revenue"])
	assert.Len(t, body["movies"], 1)
}
