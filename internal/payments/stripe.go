package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
)

// StripeProvider opens Stripe Checkout sessions with manual capture, so the
// payment is authorized first and captured in a separate step.
type StripeProvider struct {
	API *client.API
}

func NewStripeProvider(secretKey string, backends *stripe.Backends) *StripeProvider {
	return &StripeProvider{API: client.New(secretKey, backends)}
}

func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (ProviderSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Order " + req.OrderID),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
			Metadata:      map[string]string{"order_id": req.OrderID},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := p.API.CheckoutSessions.New(params)
	if err != nil {
		return ProviderSession{}, classifyStripeError(ctx, err)
	}
	return ProviderSession{ID: sess.ID, RedirectURL: sess.URL}, nil
}

// classifyStripeError wraps retryable failures with ErrProviderUnavailable.
func classifyStripeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode >= http.StatusInternalServerError || se.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: stripe %d: %s", ErrProviderUnavailable, se.HTTPStatusCode, se.Msg)
		}
		return fmt.Errorf("stripe %d: %s", se.HTTPStatusCode, se.Msg)
	}
	// connection-level failure
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
