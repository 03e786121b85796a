package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

// stripeStub serves GET /v1/payment_intents/{id} with a fixed response.
func stripeStub(t *testing.T, status int, body string) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGateway("sk_test_123", "KRW", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func approval() PaymentApproval {
	return PaymentApproval{PaymentKey: "pi_123", OrderID: "order_abc", Amount: 28000}
}

func TestStripeGateway_Succeeded(t *testing.T) {
	gw := stripeStub(t, http.StatusOK, `{"id":"pi_123","object":"payment_intent","amount":28000,"currency":"krw","status":"succeeded","metadata":{"order_id":"order_abc"}}`)

	receipt, err := gw.Confirm(context.Background(), approval())
	require.NoError(t, err)
	assert.Equal(t, "pi_123", receipt.PaymentKey)
	assert.False(t, receipt.ApprovedAt.IsZero())
}

func TestStripeGateway_Rejections(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"not succeeded", `{"id":"pi_123","amount":28000,"currency":"krw","status":"requires_payment_method","metadata":{"order_id":"order_abc"}}`, ErrPaymentDeclined},
		{"amount", `{"id":"pi_123","amount":1000,"currency":"krw","status":"succeeded","metadata":{"order_id":"order_abc"}}`, ErrAmountMismatch},
		{"currency", `{"id":"pi_123","amount":28000,"currency":"usd","status":"succeeded","metadata":{"order_id":"order_abc"}}`, ErrPaymentDeclined},
		{"order", `{"id":"pi_123","amount":28000,"currency":"krw","status":"succeeded","metadata":{"order_id":"order_other"}}`, ErrPaymentDeclined},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := stripeStub(t, http.StatusOK, tc.body)
			_, err := gw.Confirm(context.Background(), approval())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStripeGateway_APIErrors(t *testing.T) {
	gw := stripeStub(t, http.StatusPaymentRequired, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	_, err := gw.Confirm(context.Background(), approval())
	assert.ErrorIs(t, err, ErrPaymentDeclined)

	gw = stripeStub(t, http.StatusServiceUnavailable, `{"error":{"type":"api_error","message":"try later"}}`)
	_, err = gw.Confirm(context.Background(), approval())
	assert.ErrorIs(t, err, ErrGatewayDown)
}

func TestStripeGateway_MissingKey(t *testing.T) {
	gw := NewStripeGateway("sk_test_123", "krw", nil)
	_, err := gw.Confirm(context.Background(), PaymentApproval{OrderID: "order_abc", Amount: 1})
	assert.ErrorIs(t, err, ErrPaymentDeclined)
}
