package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// IdempotencyHeader carries the per-submission key of a hold request.
const IdempotencyHeader = "Idempotency-Key"

// Session is the result of a login.
type Session struct {
	UserID       uint64
	Email        string
	Role         string
	AccessToken  string
	RefreshToken string
	Expires      time.Time
}

type authResp struct {
	User struct {
		ID    uint64 `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	Access struct {
		Token   string    `json:"token"`
		Expires time.Time `json:"expires"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

// Login authenticates and stores the access token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out authResp
	in := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/v1/auth/login", in, &out, nil); err != nil {
		return nil, err
	}
	c.SetToken(out.Access.Token)
	return &Session{
		UserID:       out.User.ID,
		Email:        out.User.Email,
		Role:         out.User.Role,
		AccessToken:  out.Access.Token,
		RefreshToken: out.Refresh.Token,
		Expires:      out.Access.Expires,
	}, nil
}

type items[T any] struct {
	Items []T `json:"items"`
}

// Movies lists the movies currently showing.
func (c *Client) Movies(ctx context.Context) ([]model.Movie, error) {
	var out items[model.Movie]
	_, err := c.do(ctx, http.MethodGet, "/v1/movies", nil, &out, nil)
	return out.Items, err
}

// MovieScreenings lists the upcoming screenings of a movie.
func (c *Client) MovieScreenings(ctx context.Context, movieID uint64) ([]model.Screening, error) {
	var out items[model.Screening]
	_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/movies/%d/screenings", movieID), nil, &out, nil)
	return out.Items, err
}

// Screening fetches one screening.
func (c *Client) Screening(ctx context.Context, id uint64) (*model.Screening, error) {
	var out model.Screening
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/screenings/%d", id), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// SeatMap fetches the live seat map of a screening.
func (c *Client) SeatMap(ctx context.Context, screeningID uint64) (*model.SeatMap, error) {
	var out model.SeatMap
	q := url.Values{"screeningId": {strconv.FormatUint(screeningID, 10)}}
	if _, err := c.do(ctx, http.MethodGet, "/v1/seats/map?"+q.Encode(), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// PricingRules fetches the rules of one screen, or the global rules when
// screenID is nil.
func (c *Client) PricingRules(ctx context.Context, screenID *uint64) ([]pricing.Rule, error) {
	path := "/v1/pricing/rules"
	if screenID != nil {
		path += "?" + url.Values{"screenId": {strconv.FormatUint(*screenID, 10)}}.Encode()
	}
	var out items[pricing.Rule]
	_, err := c.do(ctx, http.MethodGet, path, nil, &out, nil)
	return out.Items, err
}

// HoldRequest asks for a hold on seats.  Counts is keyed by ticket kind.
type HoldRequest struct {
	ScreeningID uint64         `json:"screeningId"`
	SeatIDs     []uint64       `json:"seatIds"`
	Counts      map[string]int `json:"counts"`
}

// TraceStep is one rule application in a hold's price breakdown.
type TraceStep struct {
	RuleID  uint64 `json:"ruleId"`
	Op      string `json:"op"`
	Label   string `json:"label"`
	Before  int64  `json:"before"`
	After   int64  `json:"after"`
	Skipped bool   `json:"skipped,omitempty"`
}

// TraceLine is the priced breakdown of one ticket kind.
type TraceLine struct {
	Kind      string      `json:"kind"`
	Count     int         `json:"count"`
	UnitPrice int64       `json:"unitPrice"`
	Subtotal  int64       `json:"subtotal"`
	Steps     []TraceStep `json:"steps"`
}

// Hold is a created (or replayed) seat hold.
type Hold struct {
	BookingID uint64              `json:"bookingId"`
	Amount    int64               `json:"amount"`
	ExpiresAt *time.Time          `json:"expiresAt"`
	Seats     []model.BookingSeat `json:"seats"`
	Trace     []TraceLine         `json:"trace"`
	Replayed  bool                `json:"-"`
}

// CreateHold posts a hold with the given idempotency key.
func (c *Client) CreateHold(ctx context.Context, req HoldRequest, key string) (*Hold, error) {
	var out Hold
	hdr, err := c.do(ctx, http.MethodPost, "/v1/bookings", req, &out, http.Header{IdempotencyHeader: {key}})
	if err != nil {
		return nil, err
	}
	out.Replayed = hdr.Get("Idempotent-Replayed") == "true"
	return &out, nil
}

// ReleaseHold gives the seats of a pending booking back.
func (c *Client) ReleaseHold(ctx context.Context, bookingID uint64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/bookings/%d/hold", bookingID), nil, nil, nil)
	return err
}

// Booking fetches one of the caller's bookings.
func (c *Client) Booking(ctx context.Context, id uint64) (*model.Booking, error) {
	var out model.Booking
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/bookings/%d", id), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyBookings lists the caller's bookings.
func (c *Client) MyBookings(ctx context.Context) ([]model.Booking, error) {
	var out items[model.Booking]
	_, err := c.do(ctx, http.MethodGet, "/v1/my-bookings", nil, &out, nil)
	return out.Items, err
}

// Order is the payload handed to the payment widget.
type Order struct {
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	OrderName   string `json:"orderName"`
	CustomerKey string `json:"customerKey"`
	SuccessURL  string `json:"successUrl"`
	FailURL     string `json:"failUrl"`
}

// Checkout opens a payment for a held booking.
func (c *Client) Checkout(ctx context.Context, bookingID uint64) (*Order, error) {
	var out Order
	in := map[string]uint64{"bookingId": bookingID}
	if _, err := c.do(ctx, http.MethodPost, "/v1/payments", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmPayment settles an approved payment.
func (c *Client) ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount int64) (*model.Booking, error) {
	var out model.Booking
	in := struct {
		PaymentKey string `json:"paymentKey"`
		OrderID    string `json:"orderId"`
		Amount     int64  `json:"amount"`
	}{paymentKey, orderID, amount}
	if _, err := c.do(ctx, http.MethodPost, "/v1/payments/confirm", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}
