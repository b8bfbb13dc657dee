package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-payments/internal/orders"
	"go.uber.org/zap"
)

// ErrAmountMismatch means the caller's amount or currency differs from the order.
var ErrAmountMismatch = errors.New("amount does not match order")

type Session struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// Initiator starts hosted payment sessions for pending orders.
type Initiator struct {
	Store      orders.Store
	Provider   Provider
	Timeout    time.Duration
	SuccessURL string // may contain {ORDER_ID}
	CancelURL  string
	Log        *zap.Logger
}

// CreateSession validates the request against the stored order, asks the
// provider for a session and attaches its handle to the order exactly once.
// The order is not touched unless the provider call succeeded.
func (in *Initiator) CreateSession(ctx context.Context, orderID string, amount int64, currency string) (Session, error) {
	log := in.logger().With(zap.String("order_id", orderID))

	o, err := in.Store.Get(ctx, orderID)
	if err != nil {
		return Session{}, err
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if o.AmountMinor != amount || o.Currency != currency {
		return Session{}, fmt.Errorf("%w: got %d %s", ErrAmountMismatch, amount, currency)
	}
	if o.Status != orders.StatusPending || o.ExternalRef != "" {
		return Session{}, fmt.Errorf("%w: order %s is %s with session %q", orders.ErrConflict, o.ID, o.Status, o.ExternalRef)
	}

	pctx := ctx
	if in.Timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}
	ps, err := in.Provider.CreateSession(pctx, SessionRequest{
		OrderID:        o.ID,
		AmountMinor:    o.AmountMinor,
		Currency:       o.Currency,
		SuccessURL:     expand(in.SuccessURL, o.ID),
		CancelURL:      expand(in.CancelURL, o.ID),
		IdempotencyKey: "checkout-" + o.ID,
	})
	if err != nil {
		log.Warn("provider session failed", zap.Error(err))
		if pctx.Err() != nil && !errors.Is(err, ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return Session{}, err
	}

	if _, err := in.Store.AttachExternalRef(ctx, o.ID, ps.ID); err != nil {
		return Session{}, err
	}
	log.Info("payment session created", zap.String("session_id", ps.ID))
	return Session{OrderID: o.ID, SessionID: ps.ID, RedirectURL: ps.RedirectURL}, nil
}

func (in *Initiator) logger() *zap.Logger {
	if in.Log == nil {
		return zap.NewNop()
	}
	return in.Log
}

func expand(tmpl, orderID string) string {
	return strings.ReplaceAll(tmpl, "{ORDER_ID}", orderID)
}
