package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"

	"github.com/stepwise-app/stepwise/internal/ai"
	"github.com/stepwise-app/stepwise/internal/fallback"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

const (
	maxTitleLength = 200
	maxTextLength  = 5000
	// retries after the first attempt at writing a new goal
	goalWriteRetries = 2
)

type CreateGoalInput struct {
	Title          string `json:"title"`
	Why            string `json:"why"`
	Deadline       string `json:"deadline"`
	TimeCommitment string `json:"timeCommitment"`
	BiggestConcern string `json:"biggestConcern"`
}

type CreateGoalResult struct {
	GoalID       string `json:"goalId"`
	Slug         string `json:"slug"`
	Username     string `json:"username"`
	IsFallback   bool   `json:"isFallback"`
	StepsSaved   int    `json:"stepsSaved"`
	PlanFallback bool   `json:"planFallback"`
}

// GoalUpdate holds the owner-editable fields. Nil fields are left unchanged.
type GoalUpdate struct {
	Title      *string `json:"title"`
	Why        *string `json:"why"`
	Status     *string `json:"status"`
	Visibility *string `json:"visibility"`
}

// GoalSummary is a goal with its step progress, as shown in lists.
type GoalSummary struct {
	*model.Goal
	Progress   model.GoalProgress `json:"progress"`
	IsFallback bool               `json:"isFallback"`
}

// GoalDetail is a goal with all of its steps.
type GoalDetail struct {
	Goal       *model.Goal        `json:"goal"`
	Steps      []*model.Step      `json:"steps"`
	Progress   model.GoalProgress `json:"progress"`
	IsFallback bool               `json:"isFallback"`
}

type GoalService struct {
	store         *repository.Store
	ai            *ai.Service
	slugs         *SlugGenerator
	fallback      *fallback.Store
	subscriptions *SubscriptionService
	files         *FileService
	freeGoalLimit int
	now           func() time.Time
	// base delay between goal write attempts, doubling each time
	writeRetryBase time.Duration
}

func NewGoalService(
	store *repository.Store,
	aiService *ai.Service,
	slugs *SlugGenerator,
	fallbackStore *fallback.Store,
	subscriptions *SubscriptionService,
	files *FileService,
	freeGoalLimit int,
	writeRetryBase time.Duration,
) *GoalService {
	return &GoalService{
		store:          store,
		ai:             aiService,
		slugs:          slugs,
		fallback:       fallbackStore,
		subscriptions:  subscriptions,
		files:          files,
		freeGoalLimit:  freeGoalLimit,
		now:            time.Now,
		writeRetryBase: writeRetryBase,
	}
}

// Create drafts a plan for a new goal and stores the goal with its steps. When
// the database keeps rejecting the write the goal goes to the fallback log
// instead and the result is marked IsFallback.
func (s *GoalService) Create(ctx context.Context, owner Identity, in CreateGoalInput) (*CreateGoalResult, error) {
	now := s.now().UTC()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, Invalid("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, Invalid("title must be at most %d characters", maxTitleLength)
	}

	var deadline *time.Time
	if d := strings.TrimSpace(in.Deadline); d != "" {
		day, err := model.ParseDay(d)
		if err != nil {
			return nil, Invalid("deadline must be a date in YYYY-MM-DD format")
		}
		if day.Before(model.Day(now)) {
			return nil, Invalid("deadline cannot be in the past")
		}
		deadline = &day
	}

	username := s.ensureOwner(ctx, owner, now)

	err := s.checkGoalLimit(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}

	plan, planFallback := s.ai.Plan(ctx, ai.PlanRequest{
		Title:          title,
		Why:            in.Why,
		Deadline:       deadline,
		TimeCommitment: in.TimeCommitment,
		BiggestConcern: in.BiggestConcern,
	})
	drafts := CalculateDueDates(ExtractSteps(plan), deadline, now)

	goal := &model.Goal{
		ID:             uuid.NewString(),
		UserID:         owner.UserID,
		Title:          title,
		Why:            strings.TrimSpace(in.Why),
		Deadline:       deadline,
		TimeCommitment: strings.TrimSpace(in.TimeCommitment),
		BiggestConcern: strings.TrimSpace(in.BiggestConcern),
		Plan:           plan,
		Status:         model.GoalStatusActive,
		Visibility:     model.VisibilityPrivate,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	steps := newSteps(goal.ID, drafts, now)

	result := &CreateGoalResult{
		GoalID:       goal.ID,
		Username:     username,
		StepsSaved:   len(steps),
		PlanFallback: planFallback,
	}

	err = s.writeGoal(ctx, goal, steps)
	if err != nil {
		slog.Error("failed to write goal, saving to fallback log", "error", err, "user_id", owner.UserID, "goal_id", goal.ID)
		if goal.Slug == "" {
			goal.Slug = s.slugs.RandomSlug(goal.Title)
		}

		user := &model.User{ID: owner.UserID, Email: owner.Email, FirstName: owner.FirstName, LastName: owner.LastName}
		ferr := s.fallback.Save(fallback.Record{Goal: *goal, Steps: steps, Owner: user, SavedAt: now})
		if ferr != nil {
			return nil, fmt.Errorf("failed to save goal: %w", errors.Join(err, ferr))
		}
		result.IsFallback = true
	}

	result.Slug = goal.Slug
	slog.Info("goal created", "user_id", owner.UserID, "goal_id", goal.ID, "steps", len(steps),
		"fallback", result.IsFallback, "plan_fallback", planFallback)
	return result, nil
}

// ensureOwner creates the user row on first use and returns the username, if
// any. Failures are logged; the goal write still runs.
func (s *GoalService) ensureOwner(ctx context.Context, owner Identity, now time.Time) string {
	err := s.store.Users.CreateIfMissing(ctx, &model.User{
		ID:        owner.UserID,
		Email:     owner.Email,
		FirstName: owner.FirstName,
		LastName:  owner.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		slog.Warn("failed to ensure goal owner exists", "error", err, "user_id", owner.UserID)
		return ""
	}

	user, err := s.store.Users.ByID(ctx, owner.UserID)
	if err != nil {
		slog.Warn("failed to load goal owner", "error", err, "user_id", owner.UserID)
		return ""
	}
	return user.UsernameOrEmpty()
}

func (s *GoalService) checkGoalLimit(ctx context.Context, userID string) error {
	limit, err := s.subscriptions.GoalLimit(ctx, userID, s.freeGoalLimit)
	if err != nil {
		slog.Warn("goal limit check skipped", "error", err, "user_id", userID)
		return nil
	}
	if limit < 0 {
		return nil
	}

	count, err := s.store.Goals.CountActive(ctx, userID)
	if err != nil {
		slog.Warn("goal limit check skipped", "error", err, "user_id", userID)
		return nil
	}
	if count >= limit {
		return ErrGoalLimitReached
	}
	return nil
}

// writeGoal inserts the goal and its steps in one transaction, retrying with
// exponential backoff. The slug is picked before each attempt so a slug taken
// by a concurrent insert is replaced on the next one.
func (s *GoalService) writeGoal(ctx context.Context, goal *model.Goal, steps []*model.Step) error {
	b := retry.NewExponential(s.writeRetryBase)
	b = retry.WithMaxRetries(goalWriteRetries, b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		goal.Slug = s.slugs.Generate(ctx, s.store.Goals, goal.Title, goal.UserID)

		err := s.store.InTx(ctx, func(tx *repository.Store) error {
			err := tx.Goals.Create(ctx, goal)
			if err != nil {
				return err
			}
			return tx.Steps.CreateMany(ctx, steps)
		})
		if err != nil {
			slog.Warn("goal write attempt failed", "error", err, "attempt", attempt, "goal_id", goal.ID)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func newSteps(goalID string, drafts []StepDraft, now time.Time) []*model.Step {
	steps := make([]*model.Step, len(drafts))
	for i, d := range drafts {
		steps[i] = &model.Step{
			ID:          uuid.NewString(),
			GoalID:      goalID,
			OrderNum:    i + 1,
			Title:       d.Title,
			Description: d.Description,
			DueDate:     d.DueDate,
			Status:      model.StepStatusPending,
			CreatedAt:   now,
		}
	}
	return steps
}

// Get returns an owned goal with its steps. Goals that only exist in the
// fallback log are returned from there.
func (s *GoalService) Get(ctx context.Context, userID, goalID string) (*GoalDetail, error) {
	goal, err := s.store.Goals.ByID(ctx, userID, goalID)
	if err != nil {
		rec, ferr := s.fallback.Get(goalID, userID)
		if ferr == nil {
			return &GoalDetail{
				Goal:       &rec.Goal,
				Steps:      rec.Steps,
				Progress:   model.Progress(rec.Steps),
				IsFallback: true,
			}, nil
		}
		if !errors.Is(ferr, fallback.ErrNotFound) {
			slog.Warn("failed to read fallback log", "error", ferr, "goal_id", goalID)
		}
		return nil, err
	}

	steps, err := s.store.Steps.ByGoal(ctx, goal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}

	return &GoalDetail{Goal: goal, Steps: steps, Progress: model.Progress(steps)}, nil
}

// List returns the user's goals with progress, newest activity first, followed
// by goals still waiting in the fallback log.
func (s *GoalService) List(ctx context.Context, userID string) ([]*GoalSummary, error) {
	var summaries []*GoalSummary
	var dbErr error

	goals, err := s.store.Goals.Goals(ctx, userID)
	if err == nil {
		var progress map[string]model.GoalProgress
		progress, err = s.store.Steps.ProgressByUser(ctx, userID)
		if err == nil {
			summaries = lo.Map(goals, func(g *model.Goal, _ int) *GoalSummary {
				return &GoalSummary{Goal: g, Progress: progress[g.ID]}
			})
		}
	}
	if err != nil {
		slog.Error("failed to list goals", "error", err, "user_id", userID)
		dbErr = err
	}

	records, err := s.fallback.ByUser(userID)
	if err != nil {
		slog.Warn("failed to read fallback log", "error", err, "user_id", userID)
	}
	seen := lo.SliceToMap(summaries, func(g *GoalSummary) (string, bool) { return g.ID, true })
	for _, rec := range records {
		if seen[rec.Goal.ID] {
			continue
		}
		goal := rec.Goal
		summaries = append(summaries, &GoalSummary{Goal: &goal, Progress: model.Progress(rec.Steps), IsFallback: true})
	}

	if dbErr != nil && len(summaries) == 0 {
		return nil, fmt.Errorf("failed to list goals: %w", dbErr)
	}
	if summaries == nil {
		summaries = []*GoalSummary{}
	}
	return summaries, nil
}

// Update applies owner edits under the goal's row lock. Status changes follow
// the lifecycle table and moving to completed stamps completedAt. No status
// change clears it.
func (s *GoalService) Update(ctx context.Context, userID, goalID string, u GoalUpdate) (*model.Goal, error) {
	var goal *model.Goal
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		now := s.now().UTC()
		err := tx.Goals.Touch(ctx, goalID, now)
		if err != nil {
			return err
		}

		goal, err = tx.Goals.ByID(ctx, userID, goalID)
		if err != nil {
			return err
		}

		err = applyGoalUpdate(goal, u, now)
		if err != nil {
			return err
		}
		goal.UpdatedAt = now
		return tx.Goals.Update(ctx, goal)
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}

func applyGoalUpdate(goal *model.Goal, u GoalUpdate, now time.Time) error {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
			return Invalid("title must be between 1 and %d characters", maxTitleLength)
		}
		goal.Title = title
	}

	if u.Why != nil {
		if utf8.RuneCountInString(*u.Why) > maxTextLength {
			return Invalid("why must be at most %d characters", maxTextLength)
		}
		goal.Why = strings.TrimSpace(*u.Why)
	}

	if u.Status != nil && *u.Status != goal.Status {
		to := *u.Status
		if !model.IsGoalStatus(to) {
			return Invalid("invalid status %q", to)
		}
		if !model.CanTransition(goal.Status, to) {
			return Invalid("cannot change goal status from %s to %s", goal.Status, to)
		}
		goal.Status = to
		if to == model.GoalStatusCompleted {
			goal.CompletedAt = &now
		}
	}

	if u.Visibility != nil {
		if !model.IsVisibility(*u.Visibility) {
			return Invalid("invalid visibility %q", *u.Visibility)
		}
		goal.Visibility = *u.Visibility
	}
	return nil
}

// Delete removes a goal with its steps and check-ins. Stored check-in images
// are removed first, best effort.
func (s *GoalService) Delete(ctx context.Context, userID, goalID string) error {
	goal, err := s.store.Goals.ByID(ctx, userID, goalID)
	if err != nil {
		return err
	}

	checkIns, err := s.store.CheckIns.ByGoal(ctx, goal.ID, false)
	if err != nil {
		slog.Warn("failed to list check-ins for goal deletion", "error", err, "goal_id", goal.ID)
	}
	for _, c := range checkIns {
		if c.ImagePath == nil {
			continue
		}
		file, err := s.store.Files.ByOwner(ctx, model.OwnerTypeCheckIn, c.ID)
		if err != nil {
			continue
		}
		if err := s.files.Delete(ctx, file); err != nil {
			slog.Warn("failed to delete check-in image", "error", err, "check_in_id", c.ID)
		}
	}

	err = s.store.Goals.Delete(ctx, userID, goal.ID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	slog.Info("goal deleted", "user_id", userID, "goal_id", goalID)
	return nil
}

// Reorder assigns new order numbers to steps of one goal. Every entry is
// validated before anything is written; steps not listed keep their number.
func (s *GoalService) Reorder(ctx context.Context, userID, goalID string, order []model.StepOrder) ([]*model.Step, error) {
	if len(order) == 0 {
		return nil, Invalid("order must list at least one step")
	}

	var steps []*model.Step
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		err := tx.Goals.Touch(ctx, goalID, s.now().UTC())
		if err != nil {
			return err
		}
		goal, err := tx.Goals.ByID(ctx, userID, goalID)
		if err != nil {
			return err
		}

		current, err := tx.Steps.ByGoal(ctx, goal.ID)
		if err != nil {
			return err
		}

		err = validateOrder(current, order)
		if err != nil {
			return err
		}

		// Park the moved steps on negative numbers first so no intermediate
		// state violates the per-goal uniqueness of order numbers.
		for i, o := range order {
			err = tx.Steps.SetOrder(ctx, o.StepID, -(i + 1))
			if err != nil {
				return err
			}
		}
		for _, o := range order {
			err = tx.Steps.SetOrder(ctx, o.StepID, o.OrderNum)
			if err != nil {
				return err
			}
		}

		steps, err = tx.Steps.ByGoal(ctx, goal.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func validateOrder(current []*model.Step, order []model.StepOrder) error {
	byID := lo.KeyBy(current, func(s *model.Step) string { return s.ID })

	final := lo.MapValues(byID, func(s *model.Step, _ string) int { return s.OrderNum })
	for _, o := range order {
		if _, ok := byID[o.StepID]; !ok {
			return fmt.Errorf("%w: %s", repository.ErrStepNotFound, o.StepID)
		}
		if o.OrderNum < 1 {
			return Invalid("orderNum must be positive")
		}
		final[o.StepID] = o.OrderNum
	}

	ids := lo.Map(order, func(o model.StepOrder, _ int) string { return o.StepID })
	if len(lo.Uniq(ids)) != len(ids) {
		return Invalid("each step may appear only once")
	}
	nums := lo.Values(final)
	if len(lo.Uniq(nums)) != len(nums) {
		return Invalid("order numbers must be unique within the goal")
	}
	return nil
}

type GoalExport struct {
	ExportedAt time.Time       `json:"exportedAt"`
	Goals      []*ExportedGoal `json:"goals"`
}

type ExportedGoal struct {
	*model.Goal
	Steps    []*model.Step    `json:"steps"`
	CheckIns []*model.CheckIn `json:"checkIns"`
}

// Export returns every goal of a Pro user with its steps and check-ins.
func (s *GoalService) Export(ctx context.Context, userID string) (*GoalExport, error) {
	err := s.subscriptions.RequireFeature(ctx, userID, model.FeatureExport)
	if err != nil {
		return nil, err
	}

	goals, err := s.store.Goals.Goals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	export := &GoalExport{ExportedAt: s.now().UTC(), Goals: make([]*ExportedGoal, 0, len(goals))}
	for _, g := range goals {
		steps, err := s.store.Steps.ByGoal(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get steps: %w", err)
		}
		checkIns, err := s.store.CheckIns.ByGoal(ctx, g.ID, false)
		if err != nil {
			return nil, fmt.Errorf("failed to get check-ins: %w", err)
		}
		export.Goals = append(export.Goals, &ExportedGoal{Goal: g, Steps: steps, CheckIns: checkIns})
	}
	return export, nil
}
