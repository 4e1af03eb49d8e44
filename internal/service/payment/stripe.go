package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/stepwise-app/stepwise/internal/config"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
	"github.com/stepwise-app/stepwise/internal/service"
)

type StripeProvider struct {
	cfg                 *config.Config
	subscriptionService *service.SubscriptionService
}

func NewStripeProvider(cfg *config.Config, subscriptionService *service.SubscriptionService) *StripeProvider {
	stripe.Key = cfg.StripeSecretKey

	slog.Info("stripe provider initialized", "app_env", cfg.AppEnv)

	return &StripeProvider{
		cfg:                 cfg,
		subscriptionService: subscriptionService,
	}
}

func (s *StripeProvider) Name() string {
	return model.ProviderStripe
}

func (s *StripeProvider) CreateCheckoutURL(ctx context.Context, userID, interval, customerEmail, customerName string) (string, error) {
	priceID := s.priceID(interval)
	if priceID == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownInterval, interval)
	}

	successURL := fmt.Sprintf("%s/billing?session_id={CHECKOUT_SESSION_ID}", s.cfg.AppURL)
	cancelURL := fmt.Sprintf("%s/billing", s.cfg.AppURL)
	metadata := map[string]string{"user_id": userID}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(customerEmail),
		Metadata:      metadata,
		// Copied onto the subscription so its events can be matched to the user.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	slog.Info("stripe checkout created", "user_id", userID, "interval", interval, "session_id", sess.ID)
	return sess.URL, nil
}

func (s *StripeProvider) CustomerPortalURL(ctx context.Context, userID string) (string, error) {
	sub, err := s.subscriptionService.Subscription(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.ProviderCustomerID == nil || *sub.ProviderCustomerID == "" {
		return "", ErrNoCustomer
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*sub.ProviderCustomerID),
		ReturnURL: stripe.String(fmt.Sprintf("%s/billing", s.cfg.AppURL)),
	}
	params.Context = ctx

	portalSession, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer portal session: %w", err)
	}

	slog.Info("stripe customer portal session created", "user_id", userID)
	return portalSession.URL, nil
}

func (s *StripeProvider) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	signature := headers.Get("Stripe-Signature")

	// Use ConstructEventWithOptions to ignore API version mismatch
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	slog.Info("stripe webhook received", "event_type", event.Type)

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionChanged(ctx, event.Data.Raw, false)
	case "customer.subscription.deleted":
		return s.handleSubscriptionChanged(ctx, event.Data.Raw, true)
	case "invoice.payment_succeeded":
		return s.handleInvoice(ctx, event.Data.Raw, model.SubscriptionStatusActive)
	case "invoice.payment_failed":
		return s.handleInvoice(ctx, event.Data.Raw, model.SubscriptionStatusPastDue)
	case "checkout.session.completed":
		slog.Info("stripe checkout completed")
		return nil
	default:
		slog.Warn("stripe webhook unknown event type", "event_type", event.Type)
		return nil
	}
}

type stripeSubscription struct {
	ID                 string            `json:"id"`
	CustomerID         string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s *StripeProvider) handleSubscriptionChanged(ctx context.Context, data json.RawMessage, deleted bool) error {
	var event stripeSubscription
	err := json.Unmarshal(data, &event)
	if err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	userID, err := s.resolveUser(ctx, event)
	if err != nil {
		return err
	}
	if userID == "" {
		slog.Warn("stripe subscription cannot be matched to a user, skipping", "stripe_sub_id", event.ID, "customer_id", event.CustomerID)
		return nil
	}

	sub := &model.Subscription{
		ID:                event.ID,
		UserID:            userID,
		Provider:          model.ProviderStripe,
		Status:            mapStripeStatus(event.Status),
		Tier:              model.TierFree,
		CancelAtPeriodEnd: event.CancelAtPeriodEnd,
	}
	if event.CustomerID != "" {
		sub.ProviderCustomerID = &event.CustomerID
	}
	if len(event.Items.Data) > 0 {
		priceID := event.Items.Data[0].Price.ID
		sub.ProviderProductID = &priceID
		if s.isProPrice(priceID) {
			sub.Tier = model.TierPro
		} else {
			slog.Warn("stripe subscription has unknown price", "stripe_sub_id", event.ID, "price_id", priceID)
		}
	}
	if event.CurrentPeriodStart > 0 {
		start := time.Unix(event.CurrentPeriodStart, 0).UTC()
		sub.CurrentPeriodStart = &start
	}
	if event.CurrentPeriodEnd > 0 {
		end := time.Unix(event.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &end
	}
	if deleted {
		sub.Status = model.SubscriptionStatusCanceled
	}

	existing, err := s.subscriptionService.ByID(ctx, sub.ID)
	if err == nil {
		sub.CreatedAt = existing.CreatedAt
	}

	err = s.subscriptionService.Upsert(ctx, sub)
	if err != nil {
		return err
	}

	slog.Info("stripe subscription synced", "user_id", userID, "stripe_sub_id", sub.ID, "status", sub.Status, "tier", sub.Tier)
	return nil
}

// resolveUser finds the user for a subscription event: checkout metadata
// first, then a row we already know, then the customer's other subscriptions.
func (s *StripeProvider) resolveUser(ctx context.Context, event stripeSubscription) (string, error) {
	if id := event.Metadata["user_id"]; id != "" {
		return id, nil
	}

	existing, err := s.subscriptionService.ByID(ctx, event.ID)
	if err == nil {
		return existing.UserID, nil
	}
	if !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return "", err
	}

	if event.CustomerID == "" {
		return "", nil
	}
	existing, err = s.subscriptionService.ByProviderCustomerID(ctx, event.CustomerID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return existing.UserID, nil
}

func (s *StripeProvider) handleInvoice(ctx context.Context, data json.RawMessage, status string) error {
	var invoice struct {
		SubscriptionID string `json:"subscription"`
	}

	err := json.Unmarshal(data, &invoice)
	if err != nil {
		return fmt.Errorf("failed to parse invoice: %w", err)
	}

	if invoice.SubscriptionID == "" {
		// One-time payment, not subscription-related
		return nil
	}

	sub, err := s.subscriptionService.ByID(ctx, invoice.SubscriptionID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		slog.Warn("stripe invoice has unknown subscription, skipping", "subscription_id", invoice.SubscriptionID)
		return nil
	}
	if err != nil {
		return err
	}

	if sub.Status == status {
		return nil
	}
	sub.Status = status
	err = s.subscriptionService.Upsert(ctx, sub)
	if err != nil {
		return err
	}

	slog.Info("stripe invoice applied", "user_id", sub.UserID, "subscription_id", sub.ID, "status", status)
	return nil
}

func (s *StripeProvider) priceID(interval string) string {
	switch interval {
	case IntervalMonthly:
		return s.cfg.StripePriceIDProMonthly
	case IntervalYearly:
		return s.cfg.StripePriceIDProYearly
	default:
		return ""
	}
}

func (s *StripeProvider) isProPrice(priceID string) bool {
	return priceID != "" && (priceID == s.cfg.StripePriceIDProMonthly || priceID == s.cfg.StripePriceIDProYearly)
}

func mapStripeStatus(status string) string {
	switch status {
	case "active", "trialing":
		return model.SubscriptionStatusActive
	case "past_due":
		return model.SubscriptionStatusPastDue
	default:
		return model.SubscriptionStatusCanceled
	}
}
