// Package payments holds seat payments with Stripe. A hold is placed
// when a booking enters pending, captured on approval and released on
// decline.
package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Client is the narrow surface the booking flow needs.
type Client interface {
	HoldSeat(ctx context.Context, costPerSeat, customerID string) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
	Release(ctx context.Context, paymentIntentID string) error
}

// StripeClient implements Client with PaymentIntent manual capture.
type StripeClient struct {
	Currency string
}

func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{Currency: "usd"}
}

// HoldSeat creates a PaymentIntent with capture_method=manual for one
// seat. Returns the PaymentIntent ID.
func (s *StripeClient) HoldSeat(ctx context.Context, costPerSeat, customerID string) (string, error) {
	amount, err := ParseCostCents(costPerSeat)
	if err != nil {
		return "", err
	}
	if amount == 0 {
		return "", nil
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(s.Currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes a previously-held PaymentIntent.
func (s *StripeClient) Capture(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Capture(paymentIntentID, nil)
	return err
}

// Release cancels the hold on a PaymentIntent.
func (s *StripeClient) Release(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}

// ParseCostCents converts a ride's cost string ("$5", "5", "4.50") to
// cents. Empty and "0" mean a free ride.
func ParseCostCents(cost string) (int64, error) {
	c := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cost), "$"))
	if c == "" || c == "0" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(c, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable cost %q: %w", cost, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative cost %q", cost)
	}
	return int64(f*100 + 0.5), nil
}
