package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

type SubscriptionService struct {
	repo repository.SubscriptionRepository
	now  func() time.Time
}

func NewSubscriptionService(repo repository.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{repo: repo, now: time.Now}
}

// Subscription returns the user's most relevant subscription, or nil for users
// that never subscribed (free tier).
func (s *SubscriptionService) Subscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.repo.ByUserID(ctx, userID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionService) IsPro(ctx context.Context, userID string) (bool, error) {
	sub, err := s.Subscription(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub.IsPro(s.now()), nil
}

// RequireFeature returns ErrProRequired unless the user's plan unlocks feature.
func (s *SubscriptionService) RequireFeature(ctx context.Context, userID, feature string) error {
	sub, err := s.Subscription(ctx, userID)
	if err != nil {
		return err
	}
	if !sub.HasFeature(feature, s.now()) {
		return ErrProRequired
	}
	return nil
}

// GoalLimit returns the user's active goal limit, -1 for unlimited.
func (s *SubscriptionService) GoalLimit(ctx context.Context, userID string, freeLimit int) (int, error) {
	sub, err := s.Subscription(ctx, userID)
	if err != nil {
		return 0, err
	}
	return sub.GoalLimit(s.now(), freeLimit), nil
}

func (s *SubscriptionService) ByID(ctx context.Context, id string) (*model.Subscription, error) {
	return s.repo.ByID(ctx, id)
}

func (s *SubscriptionService) ByProviderCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	return s.repo.ByProviderCustomerID(ctx, customerID)
}

// Upsert stores the provider's view of a subscription. CreatedAt is kept from
// the existing row when there is one.
func (s *SubscriptionService) Upsert(ctx context.Context, sub *model.Subscription) error {
	now := s.now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	err := s.repo.Upsert(ctx, sub)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}
