package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeGateway confirms payments against Stripe PaymentIntents.  The
// payment key is the PaymentIntent id; the intent must have succeeded for
// the exact amount and currency and carry the order id in its metadata.
type StripeGateway struct {
	client   *client.API
	currency string
}

// NewStripeGateway returns a gateway using secretKey.  backends may be nil
// to talk to the live Stripe API.
func NewStripeGateway(secretKey, currency string, backends *stripe.Backends) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, backends)
	return &StripeGateway{client: sc, currency: strings.ToLower(currency)}
}

func (g *StripeGateway) Confirm(ctx context.Context, a PaymentApproval) (*PaymentReceipt, error) {
	if a.PaymentKey == "" {
		return nil, fmt.Errorf("%w: missing payment key", ErrPaymentDeclined)
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.client.PaymentIntents.Get(a.PaymentKey, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	switch {
	case pi.Status != stripe.PaymentIntentStatusSucceeded:
		return nil, fmt.Errorf("%w: intent status is %s", ErrPaymentDeclined, pi.Status)
	case pi.Amount != a.Amount:
		return nil, fmt.Errorf("%w: intent amount %d, order amount %d", ErrAmountMismatch, pi.Amount, a.Amount)
	case g.currency != "" && !strings.EqualFold(string(pi.Currency), g.currency):
		return nil, fmt.Errorf("%w: intent currency %s", ErrPaymentDeclined, pi.Currency)
	case pi.Metadata["order_id"] != a.OrderID:
		return nil, fmt.Errorf("%w: intent belongs to another order", ErrPaymentDeclined)
	}
	return &PaymentReceipt{PaymentKey: pi.ID, ApprovedAt: time.Now().UTC()}, nil
}

// mapStripeError turns stripe-go errors into the service's errors.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripe.ErrorCodeCardDeclined:
			return fmt.Errorf("%w: card was declined (%s)", ErrPaymentDeclined, stripeErr.Msg)
		case stripe.ErrorCodeExpiredCard:
			return fmt.Errorf("%w: card has expired", ErrPaymentDeclined)
		case stripe.ErrorCodeResourceMissing:
			return fmt.Errorf("%w: unknown payment key", ErrPaymentDeclined)
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", ErrGatewayDown, stripeErr.Msg)
		}
		return fmt.Errorf("%w: %s", ErrPaymentDeclined, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %v", ErrGatewayDown, err)
}
