package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

func TestCreateCheckIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Meditate")

	c, err := env.checkIns.Create(ctx, "u1", goal.Goal.ID, CheckInInput{
		Mood:     model.MoodGood,
		Content:  "Did **ten** minutes",
		IsPublic: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CheckInTypeDaily, c.Type)
	require.NotNil(t, c.Mood)
	assert.Equal(t, model.MoodGood, *c.Mood)
	assert.NotEmpty(t, c.AIResponse)
	assert.Contains(t, c.ContentHTML, "<strong>ten</strong>")
	assert.Nil(t, c.ImagePath)

	stats, err := env.stats.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 0, stats.TotalStepsCompleted)
}

func TestCreateCheckInValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Meditate")

	_, err := env.checkIns.Create(ctx, "u1", goal.Goal.ID, CheckInInput{Mood: "ecstatic"})
	assert.True(t, IsValidation(err))

	_, err = env.checkIns.Create(ctx, "u1", goal.Goal.ID, CheckInInput{Type: "hourly"})
	assert.True(t, IsValidation(err))

	_, err = env.checkIns.Create(ctx, "u2", goal.Goal.ID, CheckInInput{Content: "not mine"})
	assert.ErrorIs(t, err, repository.ErrGoalNotFound)
}

func TestListCheckInsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Meditate")

	empty, err := env.checkIns.List(ctx, "u1", goal.Goal.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, content := range []string{"first", "second", "third"} {
		_, err := env.checkIns.Create(ctx, "u1", goal.Goal.ID, CheckInInput{Type: model.CheckInTypeWeekly, Content: content})
		require.NoError(t, err)
		env.clock.advance(time.Minute)
	}

	list, err := env.checkIns.List(ctx, "u1", goal.Goal.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Content)
	assert.Equal(t, "first", list[2].Content)

	_, err = env.checkIns.List(ctx, "u2", goal.Goal.ID)
	assert.ErrorIs(t, err, repository.ErrGoalNotFound)
}
