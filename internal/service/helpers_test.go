package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/ai"
	"github.com/stepwise-app/stepwise/internal/db/dbtest"
	"github.com/stepwise-app/stepwise/internal/fallback"
	"github.com/stepwise-app/stepwise/internal/markdown"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
	"github.com/stepwise-app/stepwise/internal/storage"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// clock is a settable time source shared by every service in a testEnv.
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	db       *sqlx.DB
	store    *repository.Store
	fallback *fallback.Store
	clock    *clock

	slugs      *SlugGenerator
	stats      *StatsService
	subs       *SubscriptionService
	files      *FileService
	goals      *GoalService
	steps      *StepService
	checkIns   *CheckInService
	users      *UserService
	public     *PublicService
	reconciler *Reconciler
	reminders  *ReminderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn := dbtest.Open(t)
	store := repository.NewStore(conn)
	fb := fallback.NewStore(filepath.Join(t.TempDir(), "fallback.jsonl"))
	clk := &clock{t: testNow}

	aiService, err := ai.NewService(ai.StubGenerator{}, time.Second)
	require.NoError(t, err)

	parser := markdown.NewParser()
	email := NewEmailService("", "noreply@example.com", "http://localhost", "Stepwise", true)

	env := &testEnv{db: conn, store: store, fallback: fb, clock: clk}
	env.slugs = NewSlugGenerator()
	env.slugs.now = clk.now
	env.stats = NewStatsService(store)
	env.stats.now = clk.now
	env.stats.retryBase = time.Millisecond
	env.subs = NewSubscriptionService(store.Subscriptions)
	env.subs.now = clk.now
	env.files = NewFileService(store.Files, storage.Disabled{})
	env.files.now = clk.now
	env.goals = NewGoalService(store, aiService, env.slugs, fb, env.subs, env.files, 3, time.Millisecond)
	env.goals.now = clk.now
	env.steps = NewStepService(store, env.stats, aiService, env.subs)
	env.steps.now = clk.now
	env.checkIns = NewCheckInService(store, env.stats, aiService, env.files, parser)
	env.checkIns.now = clk.now
	env.users = NewUserService(store, env.stats, env.subs, env.files, email, 3)
	env.users.now = clk.now
	env.public = NewPublicService(store, env.files, parser)
	env.reconciler = NewReconciler(store, fb, env.slugs)
	env.reconciler.now = clk.now
	env.reminders = NewReminderService(store, email)
	env.reminders.now = clk.now
	return env
}

func testOwner(id string) Identity {
	return Identity{UserID: id, Email: id + "@example.com", FirstName: "Test"}
}

// createGoal creates a goal through GoalService with the stub planner, which
// always drafts three steps.
func (e *testEnv) createGoal(t *testing.T, userID, title string) *GoalDetail {
	t.Helper()
	ctx := context.Background()

	res, err := e.goals.Create(ctx, testOwner(userID), CreateGoalInput{Title: title})
	require.NoError(t, err)
	require.False(t, res.IsFallback)

	detail, err := e.goals.Get(ctx, userID, res.GoalID)
	require.NoError(t, err)
	return detail
}

func (e *testEnv) makePro(t *testing.T, userID string) {
	t.Helper()
	_, err := e.users.EnsureUser(context.Background(), testOwner(userID))
	require.NoError(t, err)

	end := e.clock.now().Add(30 * 24 * time.Hour)
	require.NoError(t, e.subs.Upsert(context.Background(), &model.Subscription{
		ID:               "sub_" + userID,
		UserID:           userID,
		Provider:         model.ProviderStripe,
		Status:           model.SubscriptionStatusActive,
		Tier:             model.TierPro,
		CurrentPeriodEnd: &end,
	}))
}
