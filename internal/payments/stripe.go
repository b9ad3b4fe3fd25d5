package payments

import (
	"context"
	"strconv"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeClient places mobile-money payments as manual-capture
// PaymentIntents: creating a payment holds the funds, confirming captures
// them.
type StripeClient struct {
	currency string
}

func NewStripeClient(apiKey, currency string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{currency: currency}
}

func (s *StripeClient) Name() string { return "stripe" }

func (s *StripeClient) Hold(ctx context.Context, h HoldRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(h.Amount),
		Currency: stripe.String(s.currency),
	}
	params.Context = ctx
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	params.AddMetadata("booking_id", strconv.FormatInt(h.BookingID, 10))
	params.AddMetadata("provider", h.Provider)
	params.AddMetadata("phone", h.Phone)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeClient) Capture(ctx context.Context, ref string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	_, err := paymentintent.Capture(ref, params)
	return err
}

func (s *StripeClient) Cancel(ctx context.Context, ref string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := paymentintent.Cancel(ref, params)
	return err
}
