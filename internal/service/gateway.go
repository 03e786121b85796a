package service

import (
	"context"
	"time"
)

// PaymentApproval is what the payment widget hands back after the
// customer pays.
type PaymentApproval struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

// PaymentReceipt is the gateway's confirmation of an approval.
type PaymentReceipt struct {
	PaymentKey string
	ApprovedAt time.Time
}

// PaymentGateway verifies an approval with the payment provider.
// Declines are reported as errors wrapping ErrPaymentDeclined, provider
// outages as errors wrapping ErrGatewayDown.
type PaymentGateway interface {
	Confirm(ctx context.Context, a PaymentApproval) (*PaymentReceipt, error)
}

// DevGateway approves every payment.  It stands in for the provider when
// no secret key is configured.
type DevGateway struct {
	Now func() time.Time
}

func (g DevGateway) Confirm(_ context.Context, a PaymentApproval) (*PaymentReceipt, error) {
	now := time.Now().UTC()
	if g.Now != nil {
		now = g.Now()
	}
	return &PaymentReceipt{PaymentKey: a.PaymentKey, ApprovedAt: now}, nil
}
