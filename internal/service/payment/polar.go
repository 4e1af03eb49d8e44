package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	polargo "github.com/polarsource/polar-go"
	"github.com/polarsource/polar-go/models/components"
	"github.com/polarsource/polar-go/models/operations"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/stepwise-app/stepwise/internal/config"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
	"github.com/stepwise-app/stepwise/internal/service"
)

type PolarProvider struct {
	cfg                 *config.Config
	subscriptionService *service.SubscriptionService
	client              *polargo.Polar
}

func NewPolarProvider(cfg *config.Config, subscriptionService *service.SubscriptionService) *PolarProvider {
	var serverOption polargo.SDKOption
	if cfg.PolarSandboxMode {
		serverOption = polargo.WithServer(polargo.ServerSandbox)
		slog.Info("polar using sandbox mode", "app_env", cfg.AppEnv)
	} else {
		serverOption = polargo.WithServer(polargo.ServerProduction)
		slog.Info("polar using production mode", "app_env", cfg.AppEnv)
	}

	client := polargo.New(
		polargo.WithSecurity(cfg.PolarAPIKey),
		serverOption,
	)

	return &PolarProvider{
		cfg:                 cfg,
		subscriptionService: subscriptionService,
		client:              client,
	}
}

func (p *PolarProvider) Name() string {
	return model.ProviderPolar
}

func (p *PolarProvider) CreateCheckoutURL(ctx context.Context, userID, interval, customerEmail, customerName string) (string, error) {
	productID := p.productID(interval)
	if productID == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownInterval, interval)
	}

	billingURL := fmt.Sprintf("%s/billing", p.cfg.AppURL)
	metadata := map[string]components.CheckoutCreateMetadata{
		"user_id": components.CreateCheckoutCreateMetadataStr(userID),
	}

	res, err := p.client.Checkouts.Create(ctx, components.CheckoutCreate{
		Products:           []string{productID},
		SuccessURL:         polargo.String(billingURL),
		ReturnURL:          polargo.String(billingURL),
		CustomerEmail:      polargo.String(customerEmail),
		CustomerName:       polargo.String(customerName),
		AllowDiscountCodes: polargo.Bool(true),
		Metadata:           metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create checkout: %w", err)
	}

	if res == nil || res.Checkout == nil {
		return "", fmt.Errorf("checkout response is nil")
	}

	slog.Info("polar checkout created", "user_id", userID, "interval", interval, "checkout_id", res.Checkout.ID)
	return res.Checkout.URL, nil
}

func (p *PolarProvider) CustomerPortalURL(ctx context.Context, userID string) (string, error) {
	sub, err := p.subscriptionService.Subscription(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.ProviderCustomerID == nil || *sub.ProviderCustomerID == "" {
		return "", ErrNoCustomer
	}

	sessionCreate := operations.CreateCustomerSessionsCreateCustomerSessionCreateCustomerSessionCustomerIDCreate(
		components.CustomerSessionCustomerIDCreate{
			CustomerID: *sub.ProviderCustomerID,
			ReturnURL:  polargo.String(fmt.Sprintf("%s/billing", p.cfg.AppURL)),
		},
	)
	res, err := p.client.CustomerSessions.Create(ctx, sessionCreate)
	if err != nil {
		return "", fmt.Errorf("failed to create customer portal session: %w", err)
	}

	if res == nil || res.CustomerSession == nil {
		return "", fmt.Errorf("customer portal response is nil")
	}

	slog.Info("polar customer portal session created", "user_id", userID)
	return res.CustomerSession.CustomerPortalURL, nil
}

func (p *PolarProvider) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if p.cfg.PolarWebhookSecret == "" {
		slog.Warn("polar no webhook secret configured, skipping signature verification")
	} else {
		wh, err := standardwebhooks.NewWebhookRaw([]byte(p.cfg.PolarWebhookSecret))
		if err != nil {
			return fmt.Errorf("failed to create webhook verifier: %w", err)
		}

		err = wh.Verify(payload, headers)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	err := json.Unmarshal(payload, &event)
	if err != nil {
		return fmt.Errorf("failed to parse webhook: %w", err)
	}

	slog.Info("polar webhook received", "event_type", event.Type)

	switch event.Type {
	case "subscription.created", "subscription.updated", "subscription.active",
		"subscription.canceled", "subscription.uncanceled", "subscription.revoked":
		return p.handleSubscription(ctx, event.Type, event.Data)
	default:
		slog.Warn("polar webhook unknown event type", "event_type", event.Type)
		return nil
	}
}

type polarSubscription struct {
	ID                 string            `json:"id"`
	CustomerID         string            `json:"customer_id"`
	ProductID          string            `json:"product_id"`
	Status             string            `json:"status"`
	CurrentPeriodStart *time.Time        `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time        `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	EndedAt            *time.Time        `json:"ended_at"`
	Metadata           map[string]string `json:"metadata"`
}

// handleSubscription upserts the subscription as Polar describes it. Polar
// sends the full object with every event, so one path handles all of them.
func (p *PolarProvider) handleSubscription(ctx context.Context, eventType string, data json.RawMessage) error {
	var event polarSubscription
	err := json.Unmarshal(data, &event)
	if err != nil {
		return fmt.Errorf("failed to parse subscription data: %w", err)
	}

	existing, err := p.subscriptionService.ByID(ctx, event.ID)
	if err != nil && !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return err
	}

	userID := event.Metadata["user_id"]
	if userID == "" && existing != nil {
		userID = existing.UserID
	}
	if userID == "" {
		slog.Warn("polar webhook no user_id in subscription metadata, skipping", "polar_sub_id", event.ID)
		return nil
	}

	sub := &model.Subscription{
		ID:                 event.ID,
		UserID:             userID,
		Provider:           model.ProviderPolar,
		Status:             mapPolarStatus(event.Status),
		Tier:               model.TierFree,
		ProviderProductID:  &event.ProductID,
		CurrentPeriodStart: event.CurrentPeriodStart,
		CurrentPeriodEnd:   event.CurrentPeriodEnd,
		CancelAtPeriodEnd:  event.CancelAtPeriodEnd,
	}
	if existing != nil {
		sub.CreatedAt = existing.CreatedAt
	}
	if event.CustomerID != "" {
		sub.ProviderCustomerID = &event.CustomerID
	}
	if p.isProProduct(event.ProductID) {
		sub.Tier = model.TierPro
	}
	if eventType == "subscription.revoked" || event.EndedAt != nil {
		sub.Status = model.SubscriptionStatusCanceled
	}

	err = p.subscriptionService.Upsert(ctx, sub)
	if err != nil {
		return err
	}

	slog.Info("polar subscription synced", "event_type", eventType, "user_id", userID, "polar_sub_id", sub.ID, "status", sub.Status)
	return nil
}

func (p *PolarProvider) productID(interval string) string {
	switch interval {
	case IntervalMonthly:
		return p.cfg.PolarProductIDProMonthly
	case IntervalYearly:
		return p.cfg.PolarProductIDProYearly
	default:
		return ""
	}
}

func (p *PolarProvider) isProProduct(productID string) bool {
	return productID != "" && (productID == p.cfg.PolarProductIDProMonthly || productID == p.cfg.PolarProductIDProYearly)
}

// mapPolarStatus maps Polar's subscription status. A canceled-at-period-end
// subscription stays "active" until Polar revokes it.
func mapPolarStatus(status string) string {
	switch status {
	case "active", "trialing":
		return model.SubscriptionStatusActive
	case "past_due", "unpaid":
		return model.SubscriptionStatusPastDue
	default:
		return model.SubscriptionStatusCanceled
	}
}
