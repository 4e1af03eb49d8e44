package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

func TestApplyActivityStreak(t *testing.T) {
	d1 := day("2024-06-01")
	tests := []struct {
		name        string
		last        *time.Time
		current     int
		longest     int
		now         time.Time
		wantCurrent int
		wantLongest int
	}{
		{"first activity", nil, 0, 0, d1, 1, 1},
		{"next day extends", &d1, 3, 3, d1.AddDate(0, 0, 1), 4, 4},
		{"same day unchanged", &d1, 3, 5, d1.Add(20 * time.Hour), 3, 5},
		{"gap resets", &d1, 4, 4, d1.AddDate(0, 0, 3), 1, 4},
		{"longest kept on reset", &d1, 2, 9, d1.AddDate(0, 0, 2), 1, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := &model.UserStats{LastActivityDate: tt.last, CurrentStreak: tt.current, LongestStreak: tt.longest}

			applyActivity(stats, model.ActivityGeneric, tt.now)

			assert.Equal(t, tt.wantCurrent, stats.CurrentStreak)
			assert.Equal(t, tt.wantLongest, stats.LongestStreak)
			assert.Equal(t, model.Day(tt.now), *stats.LastActivityDate)
		})
	}
}

func TestApplyActivityCounters(t *testing.T) {
	stats := &model.UserStats{}

	applyActivity(stats, model.ActivityStepCompleted, testNow)
	applyActivity(stats, model.ActivityStepCompleted, testNow)
	applyActivity(stats, model.ActivityGoalCompleted, testNow)
	applyActivity(stats, model.ActivityGeneric, testNow)

	assert.Equal(t, 2, stats.TotalStepsCompleted)
	assert.Equal(t, 1, stats.TotalGoalsCompleted)
	assert.Equal(t, 1, stats.CurrentStreak)
}

func TestRecordActivityAcrossDays(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.users.EnsureUser(ctx, testOwner("u1"))
	require.NoError(t, err)

	for range 3 {
		_, err = env.stats.RecordActivity(ctx, "u1", model.ActivityGeneric)
		require.NoError(t, err)
		env.clock.advance(24 * time.Hour)
	}
	env.clock.advance(48 * time.Hour)
	stats, err := env.stats.RecordActivity(ctx, "u1", model.ActivityGeneric)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)
}

func TestRecordActivityRejectsUnknownAction(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.stats.RecordActivity(context.Background(), "u1", "dance")
	assert.Error(t, err)
}

func TestRecordActivityConcurrentNoLostUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.users.EnsureUser(ctx, testOwner("u1"))
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.stats.RecordActivity(ctx, "u1", model.ActivityStepCompleted)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := env.stats.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, n, stats.TotalStepsCompleted)
	assert.Equal(t, 1, stats.CurrentStreak)
}

func TestRetryConflictsRetriesOnlyConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	calls := 0
	err := env.stats.retryConflicts(ctx, func(context.Context) error {
		calls++
		if calls < 3 {
			return repository.ErrConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = env.stats.retryConflicts(ctx, func(context.Context) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)

	calls = 0
	err = env.stats.retryConflicts(ctx, func(context.Context) error {
		calls++
		return repository.ErrConflict
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, statsConflictRetries+1, calls)
}
