package payments

import (
	"context"
	"errors"
)

// ErrProviderUnavailable marks provider failures that are safe to retry.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

type SessionRequest struct {
	OrderID     string
	AmountMinor int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	// IdempotencyKey lets the provider collapse retried requests.
	IdempotencyKey string
}

type ProviderSession struct {
	ID          string
	RedirectURL string
}

// Provider creates hosted payment sessions at an external processor.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (ProviderSession, error)
}
