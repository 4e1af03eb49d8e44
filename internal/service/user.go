package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
	"github.com/stepwise-app/stepwise/internal/validation"
)

type Me struct {
	User         *model.User         `json:"user"`
	IsPro        bool                `json:"isPro"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
}

type Dashboard struct {
	Stats        *model.UserStats `json:"stats"`
	IsPro        bool             `json:"isPro"`
	GoalLimit    int              `json:"goalLimit"`
	ActiveGoals  int              `json:"activeGoals"`
	Goals        []*GoalSummary   `json:"goals"`
	OverdueSteps []*model.Step    `json:"overdueSteps"`
}

type UserService struct {
	store         *repository.Store
	stats         *StatsService
	subscriptions *SubscriptionService
	files         *FileService
	email         *EmailService
	freeGoalLimit int
	now           func() time.Time
}

func NewUserService(
	store *repository.Store,
	stats *StatsService,
	subscriptions *SubscriptionService,
	files *FileService,
	email *EmailService,
	freeGoalLimit int,
) *UserService {
	return &UserService{
		store:         store,
		stats:         stats,
		subscriptions: subscriptions,
		files:         files,
		email:         email,
		freeGoalLimit: freeGoalLimit,
		now:           time.Now,
	}
}

// EnsureUser returns the user for a session, creating the row from the
// session's identity claims if the identity webhook has not arrived yet.
func (s *UserService) EnsureUser(ctx context.Context, id Identity) (*model.User, error) {
	now := s.now().UTC()
	err := s.store.Users.CreateIfMissing(ctx, &model.User{
		ID:        id.UserID,
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.store.Users.ByID(ctx, id.UserID)
}

func (s *UserService) ByID(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users.ByID(ctx, userID)
}

func (s *UserService) Me(ctx context.Context, id Identity) (*Me, error) {
	user, err := s.EnsureUser(ctx, id)
	if err != nil {
		return nil, err
	}

	sub, err := s.subscriptions.Subscription(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Me{User: user, IsPro: sub.IsPro(s.now()), Subscription: sub}, nil
}

func (s *UserService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	now := s.now()

	stats, err := s.stats.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub, err := s.subscriptions.Subscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	goals, err := s.store.Goals.Goals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	progress, err := s.store.Steps.ProgressByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	overdue, err := s.store.Steps.OverdueForUser(ctx, userID, model.Day(now))
	if err != nil {
		return nil, fmt.Errorf("failed to get overdue steps: %w", err)
	}
	if overdue == nil {
		overdue = []*model.Step{}
	}

	active := lo.CountBy(goals, func(g *model.Goal) bool { return g.Status == model.GoalStatusActive })
	summaries := lo.Map(goals, func(g *model.Goal, _ int) *GoalSummary {
		return &GoalSummary{Goal: g, Progress: progress[g.ID]}
	})

	return &Dashboard{
		Stats:        stats,
		IsPro:        sub.IsPro(now),
		GoalLimit:    sub.GoalLimit(now, s.freeGoalLimit),
		ActiveGoals:  active,
		Goals:        summaries,
		OverdueSteps: overdue,
	}, nil
}

// SetUsername claims a username for the public profile.
func (s *UserService) SetUsername(ctx context.Context, userID, username string) (*model.User, error) {
	username = validation.NormalizeUsername(username)
	err := validation.ValidateUsername(username)
	if err != nil {
		return nil, Invalid("%s", err.Error())
	}

	err = s.store.Users.SetUsername(ctx, userID, username, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return s.store.Users.ByID(ctx, userID)
}

// SyncIdentity creates or refreshes a user from an identity provider event.
// A welcome email goes out on creation.
func (s *UserService) SyncIdentity(ctx context.Context, user *model.User, created bool) error {
	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := s.store.Users.Upsert(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	if created {
		err = s.email.SendWelcomeEmail(ctx, user.Email, user.DisplayName())
		if err != nil {
			slog.Warn("failed to send welcome email", "error", err, "user_id", user.ID)
		}
	}
	return nil
}

// RemoveIdentity deletes a user removed at the identity provider. Unknown
// users are ignored.
func (s *UserService) RemoveIdentity(ctx context.Context, userID string) error {
	err := s.files.DeleteAllUserFilesFromStorage(ctx, userID)
	if err != nil {
		slog.Warn("failed to delete user files from storage", "user_id", userID, "error", err)
	}

	err = s.store.Users.Delete(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	slog.Info("user removed by identity provider", "user_id", userID)
	return nil
}

// DeleteAccount deletes the user and everything they own. It is refused while
// a Pro subscription is still running.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	isPro, err := s.subscriptions.IsPro(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check subscription: %w", err)
	}
	if isPro {
		return ErrActiveSubscription
	}

	user, err := s.store.Users.ByID(ctx, userID)
	if err != nil {
		return err
	}

	err = s.files.DeleteAllUserFilesFromStorage(ctx, userID)
	if err != nil {
		slog.Warn("failed to delete user files from storage", "user_id", userID, "error", err)
	}

	// Goals, steps, check-ins, stats, subscriptions and file rows cascade.
	err = s.store.Users.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	err = s.email.SendAccountDeletedEmail(ctx, user.Email, user.DisplayName())
	if err != nil {
		slog.Warn("failed to send account deleted email", "user_id", userID, "email", user.Email, "error", err)
	}

	slog.Info("account deleted", "user_id", userID)
	return nil
}
