package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

const statsConflictRetries = 5

type StatsService struct {
	store *repository.Store
	now   func() time.Time
	// base delay between optimistic-concurrency retries
	retryBase time.Duration
}

func NewStatsService(store *repository.Store) *StatsService {
	return &StatsService{
		store:     store,
		now:       time.Now,
		retryBase: 20 * time.Millisecond,
	}
}

// Stats returns the user's stats, creating an empty row on first access.
func (s *StatsService) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	err := s.store.Stats.Ensure(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stats: %w", err)
	}
	return s.store.Stats.ByUserID(ctx, userID)
}

// RecordActivity applies one action to the user's streak and counters in its
// own transaction, retrying when a concurrent writer bumped the version first.
func (s *StatsService) RecordActivity(ctx context.Context, userID, action string) (*model.UserStats, error) {
	if !model.IsActivity(action) {
		return nil, fmt.Errorf("unknown activity %q", action)
	}

	var stats *model.UserStats
	err := s.retryConflicts(ctx, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			var err error
			stats, err = s.record(ctx, tx, userID, action, s.now())
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}
	return stats, nil
}

// record performs a single read-modify-write attempt inside tx. It returns
// repository.ErrConflict if the row changed underneath it.
func (s *StatsService) record(ctx context.Context, tx *repository.Store, userID, action string, now time.Time) (*model.UserStats, error) {
	err := tx.Stats.Ensure(ctx, userID, now.UTC())
	if err != nil {
		return nil, err
	}

	stats, err := tx.Stats.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	applyActivity(stats, action, now)

	err = tx.Stats.CompareAndSwap(ctx, stats)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// retryConflicts reruns fn with jittered exponential backoff while it fails with ErrConflict.
func (s *StatsService) retryConflicts(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.NewExponential(s.retryBase)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxRetries(statsConflictRetries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, repository.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// applyActivity advances the streak over calendar days (UTC) and increments
// the counter for action. A second activity on the same day leaves the streak
// as it is, and so does a last activity date in the future.
func applyActivity(stats *model.UserStats, action string, now time.Time) {
	today := model.Day(now)

	switch {
	case stats.LastActivityDate == nil:
		stats.CurrentStreak = 1
		stats.LongestStreak = max(stats.LongestStreak, 1)
	default:
		gap := model.DaysBetween(*stats.LastActivityDate, today)
		switch {
		case gap == 1:
			stats.CurrentStreak++
			stats.LongestStreak = max(stats.LongestStreak, stats.CurrentStreak)
		case gap <= 0:
			// same day
		default:
			stats.CurrentStreak = 1
		}
	}

	switch action {
	case model.ActivityStepCompleted:
		stats.TotalStepsCompleted++
	case model.ActivityGoalCompleted:
		stats.TotalGoalsCompleted++
	}

	stats.LastActivityDate = &today
	stats.UpdatedAt = now.UTC()
}
