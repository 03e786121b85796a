package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// BookingService is the hold workflow behind the booking endpoints.
type BookingService interface {
	Hold(ctx context.Context, req service.HoldRequest) (*service.HoldResult, error)
	Release(ctx context.Context, userID, bookingID uint64) error
	Get(ctx context.Context, userID, bookingID uint64) (*model.Booking, error)
	ListMine(ctx context.Context, userID uint64) ([]model.Booking, error)
	SeatMap(ctx context.Context, screeningID uint64) (*model.SeatMap, error)
}

// BookingHandler serves seat maps, holds and the customer's bookings.
type BookingHandler struct {
	Bookings BookingService
	Log      *slog.Logger
}

func NewBookingHandler(b BookingService, log *slog.Logger) *BookingHandler {
	if b == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b, Log: log}
}

type holdReq struct {
	ScreeningID uint64         `json:"screeningId"`
	SeatIDs     []uint64       `json:"seatIds"`
	Counts      map[string]int `json:"counts"`
}

// traceStep is one rule application as shown on the seat page.
type traceStep struct {
	RuleID  uint64 `json:"ruleId"`
	Op      string `json:"op"`
	Label   string `json:"label"`
	Before  int64  `json:"before"`
	After   int64  `json:"after"`
	Skipped bool   `json:"skipped,omitempty"`
}

type traceLine struct {
	Kind      string      `json:"kind"`
	Count     int         `json:"count"`
	UnitPrice int64       `json:"unitPrice"`
	Subtotal  int64       `json:"subtotal"`
	Steps     []traceStep `json:"steps"`
}

type holdResp struct {
	BookingID uint64              `json:"bookingId"`
	Amount    int64               `json:"amount"`
	ExpiresAt *time.Time          `json:"expiresAt"`
	Seats     []model.BookingSeat `json:"seats"`
	Trace     []traceLine         `json:"trace"`
}

func quoteTrace(q pricing.Quote) []traceLine {
	out := make([]traceLine, 0, len(q.Lines))
	for _, l := range q.Lines {
		line := traceLine{Kind: string(l.Kind), Count: l.Count, UnitPrice: l.UnitPrice, Subtotal: l.Subtotal, Steps: []traceStep{}}
		for _, e := range l.Result.Trace {
			line.Steps = append(line.Steps, traceStep{
				RuleID:  e.RuleID,
				Op:      string(e.Op),
				Label:   pricing.Label(e),
				Before:  e.Before.Round(0).IntPart(),
				After:   e.After.Round(0).IntPart(),
				Skipped: e.Skipped,
			})
		}
		out = append(out, line)
	}
	return out
}

// parseCounts turns {"ADULT":2,"TEEN":1} into a Headcount.  Unknown kinds
// and negative counts are rejected.
func parseCounts(raw map[string]int) (pricing.Headcount, bool) {
	counts := pricing.Headcount{}
	for k, n := range raw {
		kind := pricing.ParseKind(k)
		if (kind != pricing.KindAdult && kind != pricing.KindTeen) || n < 0 {
			return nil, false
		}
		counts[kind] += n
	}
	return counts, true
}

// CreateHold handles POST /v1/bookings.
func (h *BookingHandler) CreateHold(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if key == "" {
		return badRequest(c, "Idempotency-Key header required")
	}
	var req holdReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ScreeningID == 0 {
		return badRequest(c, "screeningId required")
	}
	counts, ok := parseCounts(req.Counts)
	if !ok {
		return badRequest(c, "counts accepts ADULT and TEEN only")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Bookings.Hold(ctx, service.HoldRequest{
		UserID:         uid,
		ScreeningID:    req.ScreeningID,
		SeatIDs:        req.SeatIDs,
		Counts:         counts,
		IdempotencyKey: key,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if res.Replayed {
		c.Response().Header().Set("Idempotent-Replayed", "true")
	}
	return c.JSON(http.StatusCreated, holdResp{
		BookingID: res.Booking.ID,
		Amount:    res.Booking.TotalAmount,
		ExpiresAt: res.Booking.HoldExpiresAt,
		Seats:     res.Booking.Seats,
		Trace:     quoteTrace(res.Quote),
	})
}

// ReleaseHold handles DELETE /v1/bookings/:id/hold.
func (h *BookingHandler) ReleaseHold(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Bookings.Release(ctx, uid, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetBooking handles GET /v1/bookings/:id.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bookings.Get(ctx, uid, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// MyBookings handles GET /v1/my-bookings.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Bookings.ListMine(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if list == nil {
		list = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// SeatMap handles GET /v1/seats/map?screeningId=.
func (h *BookingHandler) SeatMap(c echo.Context) error {
	id, ok := queryID(c, "screeningId")
	if !ok || id == nil {
		return badRequest(c, "screeningId required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Bookings.SeatMap(ctx, *id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, m)
}
