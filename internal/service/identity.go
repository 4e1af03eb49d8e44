package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/stepwise-app/stepwise/internal/model"
)

var ErrInvalidWebhook = errors.New("invalid webhook")

// IdentityWebhook keeps users in sync with the hosted identity provider.
// Deliveries are signed per Standard Webhooks; Svix-style headers are accepted too.
type IdentityWebhook struct {
	verifier *standardwebhooks.Webhook
	users    *UserService
}

// NewIdentityWebhook takes the provider's "whsec_" signing secret.
func NewIdentityWebhook(secret string, users *UserService) (*IdentityWebhook, error) {
	wh, err := standardwebhooks.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook verifier: %w", err)
	}
	return &IdentityWebhook{verifier: wh, users: users}, nil
}

type identityEvent struct {
	Type string       `json:"type"`
	Data identityUser `json:"data"`
}

type identityUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (u identityUser) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (w *IdentityWebhook) Handle(ctx context.Context, payload []byte, headers http.Header) error {
	err := w.verifier.Verify(payload, standardHeaders(headers))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	var event identityEvent
	err = json.Unmarshal(payload, &event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if event.Data.ID == "" {
		return fmt.Errorf("%w: event has no user id", ErrInvalidWebhook)
	}

	slog.Info("identity webhook received", "event_type", event.Type, "user_id", event.Data.ID)

	switch event.Type {
	case "user.created", "user.updated":
		user := &model.User{
			ID:        event.Data.ID,
			Email:     event.Data.primaryEmail(),
			FirstName: event.Data.FirstName,
			LastName:  event.Data.LastName,
		}
		return w.users.SyncIdentity(ctx, user, event.Type == "user.created")
	case "user.deleted":
		return w.users.RemoveIdentity(ctx, event.Data.ID)
	default:
		slog.Warn("identity webhook unknown event type", "event_type", event.Type)
		return nil
	}
}

// standardHeaders maps svix-* headers onto their webhook-* equivalents.
func standardHeaders(h http.Header) http.Header {
	out := http.Header{}
	for _, name := range []string{"id", "timestamp", "signature"} {
		v := h.Get("webhook-" + name)
		if v == "" {
			v = h.Get("svix-" + name)
		}
		out.Set("webhook-"+name, v)
	}
	return out
}
