package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// MovieStore persists movies.
type MovieStore interface {
	Create(ctx context.Context, m *model.Movie) error
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
	List(ctx context.Context, activeOnly bool) ([]model.Movie, error)
	Update(ctx context.Context, m *model.Movie) error
	Delete(ctx context.Context, id uint64) error
}

// ScreenStore persists screens and their seat grids.
type ScreenStore interface {
	Create(ctx context.Context, s *model.Screen) error
	GetByID(ctx context.Context, id uint64) (*model.Screen, error)
	List(ctx context.Context) ([]model.Screen, error)
	Update(ctx context.Context, s *model.Screen) error
	Delete(ctx context.Context, id uint64) error
}

// SeatStore edits individual seats of a screen.
type SeatStore interface {
	ListByScreen(ctx context.Context, screenID uint64) ([]model.Seat, error)
	UpdateByIDAndScreen(ctx context.Context, id, screenID uint64, seatType string, isActive bool) error
}

// ScreeningStore persists screenings.
type ScreeningStore interface {
	CreateWithSeats(ctx context.Context, s *model.Screening) error
	GetByID(ctx context.Context, id uint64) (*model.Screening, error)
	ListByMovie(ctx context.Context, movieID uint64, from time.Time) ([]model.Screening, error)
	ListByScreen(ctx context.Context, screenID uint64) ([]model.Screening, error)
	Update(ctx context.Context, s *model.Screening) error
	Delete(ctx context.Context, id uint64) error
}

// StatsStore produces the admin sales summary.
type StatsStore interface {
	Summary(ctx context.Context) (*repository.Stats, error)
}

// CatalogHandler serves the public catalog and its admin CRUD.
type CatalogHandler struct {
	Movies     MovieStore
	Screens    ScreenStore
	Seats      SeatStore
	Screenings ScreeningStore
	Stats      StatsStore
	Log        *slog.Logger
	// Changed runs after every successful write, e.g. to purge cached
	// public listings.  May be nil.
	Changed func(ctx context.Context)
	now     func() time.Time
}

func NewCatalogHandler(m MovieStore, s ScreenStore, seats SeatStore, sc ScreeningStore, st StatsStore, log *slog.Logger) *CatalogHandler {
	if m == nil || s == nil || seats == nil || sc == nil || st == nil {
		panic("nil repository passed to NewCatalogHandler")
	}
	return &CatalogHandler{
		Movies: m, Screens: s, Seats: seats, Screenings: sc, Stats: st, Log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (h *CatalogHandler) changed(ctx context.Context) {
	if h.Changed != nil {
		h.Changed(ctx)
	}
}

var ratings = map[string]bool{"ALL": true, "12": true, "15": true, "19": true}

var seatTypes = map[string]bool{"STANDARD": true, "PREMIUM": true, "ACCESSIBLE": true}

// maxGrid bounds a screen's rows and columns.
const maxGrid = 60

// ----- public -----

// ListMovies handles GET /v1/movies.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Movies.List(ctx, true)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetMovie handles GET /v1/movies/:id.  Inactive movies are hidden.
func (h *CatalogHandler) GetMovie(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Movies.GetByID(ctx, id)
	if err == nil && !m.IsActive {
		err = repository.ErrNotFound
	}
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, m)
}

// MovieScreenings handles GET /v1/movies/:id/screenings: upcoming
// scheduled screenings of a movie.
func (h *CatalogHandler) MovieScreenings(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Screenings.ListByMovie(ctx, id, h.now())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetScreening handles GET /v1/screenings/:id.
func (h *CatalogHandler) GetScreening(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid screening id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Screenings.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// ----- admin: movies -----

type movieReq struct {
	Title       string  `json:"title"`
	RuntimeMin  uint32  `json:"runtimeMin"`
	Rating      string  `json:"rating"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

func (r movieReq) toMovie() (model.Movie, string) {
	title := strings.TrimSpace(r.Title)
	if title == "" || len(title) > 200 {
		return model.Movie{}, "title required (max 200 chars)"
	}
	if r.RuntimeMin == 0 || r.RuntimeMin > 600 {
		return model.Movie{}, "runtimeMin must be between 1 and 600"
	}
	rating := strings.ToUpper(strings.TrimSpace(r.Rating))
	if rating == "" {
		rating = "ALL"
	}
	if !ratings[rating] {
		return model.Movie{}, "rating must be ALL, 12, 15 or 19"
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return model.Movie{Title: title, RuntimeMin: r.RuntimeMin, Rating: rating, Description: r.Description, IsActive: active}, ""
}

// AdminListMovies handles GET /v1/admin/movies, inactive included.
func (h *CatalogHandler) AdminListMovies(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Movies.List(ctx, false)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// CreateMovie handles POST /v1/admin/movies.
func (h *CatalogHandler) CreateMovie(c echo.Context) error {
	var req movieReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	m, msg := req.toMovie()
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Movies.Create(ctx, &m); err != nil {
		return respondError(c, h.Log, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusCreated, m)
}

// UpdateMovie handles PUT /v1/admin/movies/:id.
func (h *CatalogHandler) UpdateMovie(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	var req movieReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	m, msg := req.toMovie()
	if msg != "" {
		return badRequest(c, msg)
	}
	m.ID = id
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Movies.Update(ctx, &m); err != nil {
		return respondError(c, h.Log, err)
	}
	h.changed(ctx)
	got, err := h.Movies.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, got)
}

// DeleteMovie handles DELETE /v1/admin/movies/:id.
func (h *CatalogHandler) DeleteMovie(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Movies.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	h.changed(ctx)
	return c.NoContent(http.StatusNoContent)
}

// ----- admin: screens -----

type screenReq struct {
	Name     string `json:"name"`
	Rows     uint32 `json:"rows"`
	Cols     uint32 `json:"cols"`
	IsActive *bool  `json:"isActive"`
}

// ListScreens handles GET /v1/admin/screens.
func (h *CatalogHandler) ListScreens(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Screens.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// CreateScreen handles POST /v1/admin/screens and generates the seat grid.
func (h *CatalogHandler) CreateScreen(c echo.Context) error {
	var req screenReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return badRequest(c, "name required")
	}
	if req.Rows == 0 || req.Cols == 0 || req.Rows > maxGrid || req.Cols > maxGrid {
		return badRequest(c, "rows and cols must be between 1 and 60")
	}
	s := model.Screen{Name: name, SeatRows: req.Rows, SeatCols: req.Cols, IsActive: true}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Screens.Create(ctx, &s); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// UpdateScreen handles PUT /v1/admin/screens/:id (name and active flag).
func (h *CatalogHandler) UpdateScreen(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid screen id")
	}
	var req screenReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Screens.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		s.Name = name
	}
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
	if err := h.Screens.Update(ctx, s); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// DeleteScreen handles DELETE /v1/admin/screens/:id.
func (h *CatalogHandler) DeleteScreen(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid screen id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Screens.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListSeats handles GET /v1/admin/screens/:id/seats.
func (h *CatalogHandler) ListSeats(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid screen id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Screens.GetByID(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	seats, err := h.Seats.ListByScreen(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": seats})
}

type seatReq struct {
	SeatType string `json:"seatType"`
	IsActive *bool  `json:"isActive"`
}

// UpdateSeat handles PUT /v1/admin/screens/:id/seats/:seatId.
func (h *CatalogHandler) UpdateSeat(c echo.Context) error {
	screenID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid screen id")
	}
	seatID, ok := paramID(c, "seatId")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	var req seatReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	seatType := strings.ToUpper(strings.TrimSpace(req.SeatType))
	if seatType == "" {
		seatType = "STANDARD"
	}
	if !seatTypes[seatType] {
		return badRequest(c, "seatType must be STANDARD, PREMIUM or ACCESSIBLE")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Seats.UpdateByIDAndScreen(ctx, seatID, screenID, seatType, active); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": seatID, "screenId": screenID, "seatType": seatType, "isActive": active})
}

// ----- admin: screenings -----

type screeningReq struct {
	MovieID   uint64 `json:"movieId"`
	ScreenID  uint64 `json:"screenId"`
	StartsAt  string `json:"startsAt"`
	EndsAt    string `json:"endsAt"`
	BasePrice int64  `json:"basePrice"`
	Status    string `json:"status"`
}

// schedule resolves start and end times.  Without endsAt the screening
// runs for the movie's runtime.
func (r screeningReq) schedule(runtimeMin uint32) (time.Time, time.Time, string) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(r.StartsAt))
	if err != nil {
		return time.Time{}, time.Time{}, "startsAt must be RFC 3339"
	}
	end := start.Add(time.Duration(runtimeMin) * time.Minute)
	if strings.TrimSpace(r.EndsAt) != "" {
		if end, err = time.Parse(time.RFC3339, strings.TrimSpace(r.EndsAt)); err != nil {
			return time.Time{}, time.Time{}, "endsAt must be RFC 3339"
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, "endsAt must be after startsAt"
	}
	return start.UTC(), end.UTC(), ""
}

// ScreenScreenings handles GET /v1/admin/screens/:id/screenings.
func (h *CatalogHandler) ScreenScreenings(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid screen id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Screenings.ListByScreen(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// CreateScreening handles POST /v1/admin/screenings.  Overlapping another
// screening on the same screen yields 409.
func (h *CatalogHandler) CreateScreening(c echo.Context) error {
	var req screeningReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.MovieID == 0 || req.ScreenID == 0 {
		return badRequest(c, "movieId and screenId required")
	}
	if req.BasePrice <= 0 {
		return badRequest(c, "basePrice must be positive")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	movie, err := h.Movies.GetByID(ctx, req.MovieID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	screen, err := h.Screens.GetByID(ctx, req.ScreenID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if !movie.IsActive || !screen.IsActive {
		return badRequest(c, "movie and screen must be active")
	}
	start, end, msg := req.schedule(movie.RuntimeMin)
	if msg != "" {
		return badRequest(c, msg)
	}
	if !start.After(h.now()) {
		return badRequest(c, "startsAt must be in the future")
	}
	s := model.Screening{MovieID: movie.ID, ScreenID: screen.ID, StartsAt: start, EndsAt: end, BasePrice: req.BasePrice, Status: "SCHEDULED"}
	if err := h.Screenings.CreateWithSeats(ctx, &s); err != nil {
		return respondError(c, h.Log, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusCreated, s)
}

// UpdateScreening handles PUT /v1/admin/screenings/:id: reschedule,
// re-price or change status.
func (h *CatalogHandler) UpdateScreening(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid screening id")
	}
	var req screeningReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Screenings.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if strings.TrimSpace(req.StartsAt) != "" {
		movie, err := h.Movies.GetByID(ctx, s.MovieID)
		if err != nil {
			return respondError(c, h.Log, err)
		}
		start, end, msg := req.schedule(movie.RuntimeMin)
		if msg != "" {
			return badRequest(c, msg)
		}
		s.StartsAt, s.EndsAt = start, end
	}
	if req.BasePrice < 0 {
		return badRequest(c, "basePrice must be positive")
	}
	if req.BasePrice > 0 {
		s.BasePrice = req.BasePrice
	}
	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		switch status {
		case "SCHEDULED", "CANCELLED", "FINISHED":
			s.Status = status
		default:
			return badRequest(c, "status must be SCHEDULED, CANCELLED or FINISHED")
		}
	}
	if err := h.Screenings.Update(ctx, s); err != nil {
		return respondError(c, h.Log, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusOK, s)
}

// DeleteScreening handles DELETE /v1/admin/screenings/:id.
func (h *CatalogHandler) DeleteScreening(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid screening id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Screenings.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	h.changed(ctx)
	return c.NoContent(http.StatusNoContent)
}

// GetStats handles GET /v1/admin/stats.
func (h *CatalogHandler) GetStats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Stats.Summary(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}
