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

func TestGoalLifecycleEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	goal := env.createGoal(t, "u1", "Run a 10k")
	require.Len(t, goal.Steps, 3)
	assert.Equal(t, model.GoalStatusActive, goal.Goal.Status)
	assert.Equal(t, "run-a-10k", goal.Goal.Slug)

	for i, step := range goal.Steps {
		change, err := env.steps.UpdateStatus(ctx, "u1", step.ID, model.StepStatusCompleted)
		require.NoError(t, err)
		assert.True(t, change.Changed)
		assert.NotNil(t, change.Step.CompletedAt)
		assert.Equal(t, i == len(goal.Steps)-1, change.GoalCompleted, "step %d", i)
		require.NotNil(t, change.Stats)
		assert.Equal(t, i+1, change.Stats.TotalStepsCompleted, "step %d", i)

		if i == 0 {
			detail, err := env.goals.Get(ctx, "u1", goal.Goal.ID)
			require.NoError(t, err)
			assert.Equal(t, model.GoalStatusActive, detail.Goal.Status)
			assert.Nil(t, detail.Goal.CompletedAt)
			assert.Equal(t, 0, change.Stats.TotalGoalsCompleted)
		}
	}

	detail, err := env.goals.Get(ctx, "u1", goal.Goal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GoalStatusCompleted, detail.Goal.Status)
	require.NotNil(t, detail.Goal.CompletedAt)
	assert.Equal(t, 100, detail.Progress.Percent)

	stats, err := env.stats.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalStepsCompleted)
	assert.Equal(t, 1, stats.TotalGoalsCompleted)
	assert.Equal(t, 1, stats.CurrentStreak)
}

func TestLastStepOnlyCompletesActiveGoals(t *testing.T) {
	for _, status := range []string{model.GoalStatusPaused, model.GoalStatusAbandoned} {
		t.Run(status, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			goal := env.createGoal(t, "u1", "Learn to juggle")

			_, err := env.goals.Update(ctx, "u1", goal.Goal.ID, GoalUpdate{Status: strPtr(status)})
			require.NoError(t, err)

			for _, step := range goal.Steps {
				change, err := env.steps.UpdateStatus(ctx, "u1", step.ID, model.StepStatusCompleted)
				require.NoError(t, err)
				assert.False(t, change.GoalCompleted)
			}

			detail, err := env.goals.Get(ctx, "u1", goal.Goal.ID)
			require.NoError(t, err)
			assert.Equal(t, status, detail.Goal.Status)
			assert.Nil(t, detail.Goal.CompletedAt)

			stats, err := env.stats.Stats(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 3, stats.TotalStepsCompleted)
			assert.Equal(t, 0, stats.TotalGoalsCompleted)
		})
	}
}

func TestUpdateStatusIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Read more")
	stepID := goal.Steps[0].ID

	first, err := env.steps.UpdateStatus(ctx, "u1", stepID, model.StepStatusCompleted)
	require.NoError(t, err)
	require.True(t, first.Changed)

	env.clock.advance(time.Hour)
	second, err := env.steps.UpdateStatus(ctx, "u1", stepID, model.StepStatusCompleted)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Step.CompletedAt.Unix(), second.Step.CompletedAt.Unix())

	stats, err := env.stats.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalStepsCompleted)
}

func TestUpdateStatusClearsCompletedAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Read more")
	stepID := goal.Steps[0].ID

	_, err := env.steps.UpdateStatus(ctx, "u1", stepID, model.StepStatusCompleted)
	require.NoError(t, err)
	change, err := env.steps.UpdateStatus(ctx, "u1", stepID, model.StepStatusInProgress)
	require.NoError(t, err)

	assert.True(t, change.Changed)
	assert.Nil(t, change.Step.CompletedAt)
}

func TestUpdateStatusValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Read more")

	_, err := env.steps.UpdateStatus(ctx, "u1", goal.Steps[0].ID, "done")
	assert.True(t, IsValidation(err))

	_, err = env.steps.UpdateStatus(ctx, "someone-else", goal.Steps[0].ID, model.StepStatusCompleted)
	assert.ErrorIs(t, err, repository.ErrStepNotFound)
}

func TestSkippedStepBlocksAutoCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Learn piano")

	_, err := env.steps.UpdateStatus(ctx, "u1", goal.Steps[0].ID, model.StepStatusSkipped)
	require.NoError(t, err)
	for _, s := range goal.Steps[1:] {
		change, err := env.steps.UpdateStatus(ctx, "u1", s.ID, model.StepStatusCompleted)
		require.NoError(t, err)
		assert.False(t, change.GoalCompleted)
	}

	detail, err := env.goals.Get(ctx, "u1", goal.Goal.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GoalStatusActive, detail.Goal.Status)
}

func TestConcurrentCompletionCompletesGoalOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Ship it")

	var wg sync.WaitGroup
	results := make(chan *StatusChange, len(goal.Steps))
	for _, s := range goal.Steps {
		wg.Add(1)
		go func(stepID string) {
			defer wg.Done()
			change, err := env.steps.UpdateStatus(ctx, "u1", stepID, model.StepStatusCompleted)
			assert.NoError(t, err)
			results <- change
		}(s.ID)
	}
	wg.Wait()
	close(results)

	completions := 0
	for change := range results {
		if change != nil && change.GoalCompleted {
			completions++
		}
	}
	assert.Equal(t, 1, completions)

	stats, err := env.stats.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalStepsCompleted)
	assert.Equal(t, 1, stats.TotalGoalsCompleted)
}

func TestEditStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Garden")
	stepID := goal.Steps[0].ID

	title := "Buy seeds"
	due := "2024-06-20"
	step, err := env.steps.Edit(ctx, "u1", stepID, StepEdit{Title: &title, DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, "Buy seeds", step.Title)
	require.NotNil(t, step.DueDate)
	assert.Equal(t, due, step.DueDate.Format(time.DateOnly))

	noDue := ""
	step, err = env.steps.Edit(ctx, "u1", stepID, StepEdit{DueDate: &noDue})
	require.NoError(t, err)
	assert.Nil(t, step.DueDate)

	empty := " "
	_, err = env.steps.Edit(ctx, "u1", stepID, StepEdit{Title: &empty})
	assert.True(t, IsValidation(err))
}

func TestBreakdownRequiresPro(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Garden")

	_, err := env.steps.Breakdown(ctx, "u1", goal.Steps[0].ID)
	assert.ErrorIs(t, err, ErrProRequired)

	env.makePro(t, "u1")
	b, err := env.steps.Breakdown(ctx, "u1", goal.Steps[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, b.Tasks)
	assert.Equal(t, goal.Steps[0].ID, b.StepID)
}
