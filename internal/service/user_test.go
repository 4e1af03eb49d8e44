package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/repository"
)

func TestSetUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2"} {
		_, err := env.users.EnsureUser(ctx, testOwner(id))
		require.NoError(t, err)
	}

	user, err := env.users.SetUsername(ctx, "u1", "  Jane_Doe ")
	require.NoError(t, err)
	require.NotNil(t, user.Username)
	assert.Equal(t, "jane_doe", *user.Username)

	_, err = env.users.SetUsername(ctx, "u2", "jane_doe")
	assert.ErrorIs(t, err, repository.ErrUsernameTaken)

	_, err = env.users.SetUsername(ctx, "u2", "no spaces allowed")
	assert.True(t, IsValidation(err))

	_, err = env.users.SetUsername(ctx, "ghost", "ghosty")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestEnsureUserKeepsExistingRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.users.EnsureUser(ctx, testOwner("u1"))
	require.NoError(t, err)
	_, err = env.users.SetUsername(ctx, "u1", "jane")
	require.NoError(t, err)

	again, err := env.users.EnsureUser(ctx, Identity{UserID: "u1", Email: "changed@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.Email, again.Email)
	require.NotNil(t, again.Username)
	assert.Equal(t, "jane", *again.Username)
}

func TestMeAndDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Paint")

	me, err := env.users.Me(ctx, testOwner("u1"))
	require.NoError(t, err)
	assert.False(t, me.IsPro)
	assert.Equal(t, "u1", me.User.ID)

	dash, err := env.users.Dashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, dash.GoalLimit)
	assert.Equal(t, 1, dash.ActiveGoals)
	require.Len(t, dash.Goals, 1)
	assert.Equal(t, goal.Goal.ID, dash.Goals[0].ID)
	assert.Len(t, dash.OverdueSteps, 0, "goal has no deadline so nothing is due")

	env.makePro(t, "u1")
	dash, err = env.users.Dashboard(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, dash.IsPro)
	assert.Equal(t, -1, dash.GoalLimit)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.createGoal(t, "u1", "Paint")

	require.NoError(t, env.users.DeleteAccount(ctx, "u1"))

	_, err := env.users.ByID(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	_, err = env.goals.Get(ctx, "u1", goal.Goal.ID)
	assert.ErrorIs(t, err, repository.ErrGoalNotFound)

	assert.ErrorIs(t, env.users.DeleteAccount(ctx, "u1"), repository.ErrUserNotFound)
}

func TestDeleteAccountBlockedByActiveSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.makePro(t, "u1")

	assert.ErrorIs(t, env.users.DeleteAccount(ctx, "u1"), ErrActiveSubscription)

	_, err := env.users.ByID(ctx, "u1")
	assert.NoError(t, err)
}
