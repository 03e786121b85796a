package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// PaymentService opens and settles payments for held bookings.
type PaymentService interface {
	Checkout(ctx context.Context, userID, bookingID uint64) (*service.Order, error)
	Confirm(ctx context.Context, userID uint64, a service.PaymentApproval) (*model.Booking, error)
}

// PaymentHandler serves the checkout endpoints.
type PaymentHandler struct {
	Payments PaymentService
	Log      *slog.Logger
}

func NewPaymentHandler(p PaymentService, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{Payments: p, Log: log}
}

type checkoutReq struct {
	BookingID uint64 `json:"bookingId"`
}

type confirmReq struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

// Checkout handles POST /v1/payments and returns the widget order.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil || req.BookingID == 0 {
		return badRequest(c, "bookingId required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	order, err := h.Payments.Checkout(ctx, uid, req.BookingID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, order)
}

// Confirm handles POST /v1/payments/confirm after the widget redirects to
// the success page.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.PaymentKey = strings.TrimSpace(req.PaymentKey)
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.PaymentKey == "" || req.OrderID == "" || req.Amount <= 0 {
		return badRequest(c, "paymentKey, orderId and amount required")
	}
	// The gateway round trip runs inside the confirmation.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*requestTimeout)
	defer cancel()
	b, err := h.Payments.Confirm(ctx, uid, service.PaymentApproval{
		PaymentKey: req.PaymentKey,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}
