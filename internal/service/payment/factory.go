package payment

import (
	"fmt"
	"log/slog"

	"github.com/stepwise-app/stepwise/internal/config"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/service"
)

// NewProvider creates a payment provider based on configuration. Without
// credentials in development, billing is disabled and nil is returned.
func NewProvider(cfg *config.Config, subscriptionService *service.SubscriptionService) (Provider, error) {
	provider := cfg.PaymentProvider

	slog.Info("initializing payment provider", "provider", provider)

	switch provider {
	case model.ProviderPolar:
		if cfg.PolarAPIKey == "" {
			if cfg.IsDevelopment() {
				slog.Warn("POLAR_API_KEY not set, billing disabled")
				return nil, nil
			}
			return nil, fmt.Errorf("POLAR_API_KEY is required when using Polar provider")
		}
		return NewPolarProvider(cfg, subscriptionService), nil

	case model.ProviderStripe:
		if cfg.StripeSecretKey == "" {
			if cfg.IsDevelopment() {
				slog.Warn("STRIPE_SECRET_KEY not set, billing disabled")
				return nil, nil
			}
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is required when using Stripe provider")
		}
		if cfg.StripeWebhookSecret == "" {
			return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when using Stripe provider")
		}
		return NewStripeProvider(cfg, subscriptionService), nil

	default:
		return nil, fmt.Errorf("unknown payment provider: %s (supported: polar, stripe)", provider)
	}
}
