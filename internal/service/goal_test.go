package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestCreateGoal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.goals.Create(ctx, testOwner("u1"), CreateGoalInput{
		Title:    "  My Goal ",
		Why:      "health",
		Deadline: "2024-06-11",
	})
	require.NoError(t, err)
	assert.False(t, res.IsFallback)
	assert.Equal(t, "my-goal", res.Slug)
	assert.Equal(t, 3, res.StepsSaved)

	detail, err := env.goals.Get(ctx, "u1", res.GoalID)
	require.NoError(t, err)
	assert.Equal(t, "My Goal", detail.Goal.Title)
	assert.Equal(t, model.VisibilityPrivate, detail.Goal.Visibility)
	assert.Nil(t, detail.Goal.CompletedAt)

	want := []string{"2024-06-04", "2024-06-07", "2024-06-10"}
	for i, s := range detail.Steps {
		assert.Equal(t, i+1, s.OrderNum)
		assert.Equal(t, model.StepStatusPending, s.Status)
		require.NotNil(t, s.DueDate)
		assert.Equal(t, want[i], s.DueDate.Format(time.DateOnly))
	}

	again, err := env.goals.Create(ctx, testOwner("u1"), CreateGoalInput{Title: "My Goal"})
	require.NoError(t, err)
	assert.Equal(t, "my-goal-1", again.Slug)

	other, err := env.goals.Create(ctx, testOwner("u2"), CreateGoalInput{Title: "My Goal"})
	require.NoError(t, err)
	assert.Equal(t, "my-goal", other.Slug)
}

func TestCreateGoalValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateGoalInput
	}{
		{"missing title", CreateGoalInput{Title: "  "}},
		{"bad deadline", CreateGoalInput{Title: "x", Deadline: "next week"}},
		{"past deadline", CreateGoalInput{Title: "x", Deadline: "2024-05-31"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.goals.Create(ctx, testOwner("u1"), tt.in)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}
}

func TestCreateGoalFreeLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for range 3 {
		env.createGoal(t, "u1", "Goal")
	}
	_, err := env.goals.Create(ctx, testOwner("u1"), CreateGoalInput{Title: "One too many"})
	assert.ErrorIs(t, err, ErrGoalLimitReached)

	env.makePro(t, "u1")
	_, err = env.goals.Create(ctx, testOwner("u1"), CreateGoalInput{Title: "Pro goal"})
	assert.NoError(t, err)
}

func TestCreateGoalFallsBackWhenDatabaseFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.db.Close())

	res, err := env.goals.Create(ctx, testOwner("u1"), CreateGoalInput{Title: "Offline goal"})
	require.NoError(t, err)
	assert.True(t, res.IsFallback)
	assert.NotEmpty(t, res.Slug)
	assert.Equal(t, 3, res.StepsSaved)

	detail, err := env.goals.Get(ctx, "u1", res.GoalID)
	require.NoError(t, err)
	assert.True(t, detail.IsFallback)
	assert.Len(t, detail.Steps, 3)

	_, err = env.goals.Get(ctx, "u2", res.GoalID)
	assert.Error(t, err)

	list, err := env.goals.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsFallback)
	assert.Equal(t, res.GoalID, list[0].ID)
}

func TestCreateGoalRetriesThreeTimesWithBackoff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.goals.writeRetryBase = 20 * time.Millisecond
	_, err := env.db.Exec(`DROP TABLE steps`)
	require.NoError(t, err)

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	start := time.Now()
	res, err := env.goals.Create(ctx, testOwner("u1"), CreateGoalInput{Title: "Flaky goal"})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.True(t, res.IsFallback)
	assert.Equal(t, 3, strings.Count(logs.String(), "goal write attempt failed"))
	for attempt := 1; attempt <= 3; attempt++ {
		assert.Contains(t, logs.String(), fmt.Sprintf("attempt=%d", attempt))
	}
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond, "waits 20ms then 40ms between attempts")

	rec, err := env.fallback.Get(res.GoalID, "u1")
	require.NoError(t, err)
	assert.Len(t, rec.Steps, 3)

	exists, err := env.store.Goals.Exists(ctx, res.GoalID)
	require.NoError(t, err)
	assert.False(t, exists, "failed transactions leave no goal row")
}

func TestListIncludesProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Read")

	_, err := env.steps.UpdateStatus(ctx, "u1", goal.Steps[0].ID, model.StepStatusCompleted)
	require.NoError(t, err)

	list, err := env.goals.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Progress.TotalSteps)
	assert.Equal(t, 1, list[0].Progress.CompletedSteps)
	assert.Equal(t, 33, list[0].Progress.Percent)

	empty, err := env.goals.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateGoalTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Write a book")
	id := goal.Goal.ID

	g, err := env.goals.Update(ctx, "u1", id, GoalUpdate{Status: strPtr(model.GoalStatusPaused)})
	require.NoError(t, err)
	assert.Equal(t, model.GoalStatusPaused, g.Status)

	_, err = env.goals.Update(ctx, "u1", id, GoalUpdate{Status: strPtr(model.GoalStatusCompleted)})
	assert.True(t, IsValidation(err), "paused goals cannot be completed directly")

	_, err = env.goals.Update(ctx, "u1", id, GoalUpdate{Status: strPtr(model.GoalStatusActive)})
	require.NoError(t, err)

	g, err = env.goals.Update(ctx, "u1", id, GoalUpdate{Status: strPtr(model.GoalStatusCompleted)})
	require.NoError(t, err)
	require.NotNil(t, g.CompletedAt)

	_, err = env.goals.Update(ctx, "u1", id, GoalUpdate{Status: strPtr(model.GoalStatusActive)})
	assert.True(t, IsValidation(err), "completed goals cannot be reopened")

	g, err = env.goals.Update(ctx, "u1", id, GoalUpdate{Status: strPtr(model.GoalStatusAbandoned)})
	require.NoError(t, err)
	assert.Equal(t, model.GoalStatusAbandoned, g.Status)
	assert.NotNil(t, g.CompletedAt, "abandoning a completed goal keeps completedAt")
}

func TestUpdateGoalFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Write a book")

	g, err := env.goals.Update(ctx, "u1", goal.Goal.ID, GoalUpdate{
		Title:      strPtr("Write two books"),
		Visibility: strPtr(model.VisibilityPublic),
	})
	require.NoError(t, err)
	assert.Equal(t, "Write two books", g.Title)
	assert.Equal(t, model.VisibilityPublic, g.Visibility)
	assert.Equal(t, goal.Goal.Slug, g.Slug, "renaming keeps the slug")

	_, err = env.goals.Update(ctx, "u1", goal.Goal.ID, GoalUpdate{Visibility: strPtr("friends")})
	assert.True(t, IsValidation(err))

	_, err = env.goals.Update(ctx, "u2", goal.Goal.ID, GoalUpdate{Title: strPtr("mine now")})
	assert.ErrorIs(t, err, repository.ErrGoalNotFound)
}

func TestDeleteGoal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Temporary")

	assert.ErrorIs(t, env.goals.Delete(ctx, "u2", goal.Goal.ID), repository.ErrGoalNotFound)
	require.NoError(t, env.goals.Delete(ctx, "u1", goal.Goal.ID))

	_, err := env.goals.Get(ctx, "u1", goal.Goal.ID)
	assert.ErrorIs(t, err, repository.ErrGoalNotFound)
	_, err = env.store.Steps.ByIDForUser(ctx, "u1", goal.Steps[0].ID)
	assert.ErrorIs(t, err, repository.ErrStepNotFound)
}

func TestReorderSteps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Reorder me")
	a, b, c := goal.Steps[0].ID, goal.Steps[1].ID, goal.Steps[2].ID

	steps, err := env.goals.Reorder(ctx, "u1", goal.Goal.ID, []model.StepOrder{
		{StepID: a, OrderNum: 3},
		{StepID: c, OrderNum: 1},
	})
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []string{c, b, a}, []string{steps[0].ID, steps[1].ID, steps[2].ID})
}

func TestReorderStepsRejectsInvalidOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Reorder me")
	other := env.createGoal(t, "u1", "Another")
	a, b := goal.Steps[0].ID, goal.Steps[1].ID

	_, err := env.goals.Reorder(ctx, "u1", goal.Goal.ID, []model.StepOrder{{StepID: a, OrderNum: 2}})
	assert.True(t, IsValidation(err), "duplicate order number with an unlisted step")

	_, err = env.goals.Reorder(ctx, "u1", goal.Goal.ID, []model.StepOrder{{StepID: a, OrderNum: 5}, {StepID: a, OrderNum: 6}})
	assert.True(t, IsValidation(err))

	_, err = env.goals.Reorder(ctx, "u1", goal.Goal.ID, []model.StepOrder{{StepID: other.Steps[0].ID, OrderNum: 9}})
	assert.ErrorIs(t, err, repository.ErrStepNotFound)

	_, err = env.goals.Reorder(ctx, "u1", goal.Goal.ID, []model.StepOrder{{StepID: b, OrderNum: 0}})
	assert.True(t, IsValidation(err))

	detail, err := env.goals.Get(ctx, "u1", goal.Goal.ID)
	require.NoError(t, err)
	for i, s := range detail.Steps {
		assert.Equal(t, i+1, s.OrderNum, "failed reorders leave order untouched")
	}
}

func TestExportRequiresPro(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createGoal(t, "u1", "Export me")

	_, err := env.goals.Export(ctx, "u1")
	assert.ErrorIs(t, err, ErrProRequired)

	env.makePro(t, "u1")
	export, err := env.goals.Export(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, export.Goals, 1)
	assert.Len(t, export.Goals[0].Steps, 3)
}
