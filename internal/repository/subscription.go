package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stepwise-app/stepwise/internal/model"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

type SubscriptionRepository interface {
	// Upsert inserts or replaces the subscription keyed by its provider id.
	Upsert(ctx context.Context, sub *model.Subscription) error
	ByID(ctx context.Context, id string) (*model.Subscription, error)
	// ByUserID returns the user's most relevant subscription: active ones first, then the newest.
	ByUserID(ctx context.Context, userID string) (*model.Subscription, error)
	ByProviderCustomerID(ctx context.Context, customerID string) (*model.Subscription, error)
}

type subscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, provider, status, tier,
			provider_customer_id, provider_product_id,
			current_period_start, current_period_end, cancel_at_period_end,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			tier = excluded.tier,
			provider_customer_id = excluded.provider_customer_id,
			provider_product_id = excluded.provider_product_id,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			cancel_at_period_end = excluded.cancel_at_period_end,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Provider,
		sub.Status,
		sub.Tier,
		sub.ProviderCustomerID,
		sub.ProviderProductID,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return err
}

func (r *subscriptionRepository) ByID(ctx context.Context, id string) (*model.Subscription, error) {
	return r.get(ctx, `SELECT * FROM subscriptions WHERE id = $1`, id)
}

func (r *subscriptionRepository) ByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE user_id = $1
	          ORDER BY CASE WHEN status = $2 THEN 0 ELSE 1 END, updated_at DESC
	          LIMIT 1`
	return r.get(ctx, query, userID, model.SubscriptionStatusActive)
}

func (r *subscriptionRepository) ByProviderCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE provider_customer_id = $1 ORDER BY updated_at DESC LIMIT 1`
	return r.get(ctx, query, customerID)
}

func (r *subscriptionRepository) get(ctx context.Context, query string, args ...any) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := r.db.GetContext(ctx, sub, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}
