package payment

import (
	"context"
	"errors"
	"net/http"
)

const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNoCustomer       = errors.New("no billing customer for this user")
	ErrUnknownInterval  = errors.New("no Pro product configured for this interval")
)

// Provider defines the interface that all payment providers must implement
type Provider interface {
	// CreateCheckoutURL starts a Pro checkout and returns the hosted checkout URL
	CreateCheckoutURL(ctx context.Context, userID, interval, customerEmail, customerName string) (string, error)

	// CustomerPortalURL creates a customer portal session and returns the URL
	CustomerPortalURL(ctx context.Context, userID string) (string, error)

	// HandleWebhook verifies and applies a webhook event from the payment provider
	HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error

	// Name returns the provider name (e.g., "polar", "stripe")
	Name() string
}
