package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stepwise-app/stepwise/internal/ai"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

// StatusChange is the outcome of a step status update.
type StatusChange struct {
	Step          *model.Step      `json:"step"`
	Changed       bool             `json:"changed"`
	GoalCompleted bool             `json:"goalCompleted"`
	Stats         *model.UserStats `json:"stats,omitempty"`
}

// StepEdit holds editable step details. A DueDate of "" clears the due date.
type StepEdit struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
}

type StepService struct {
	store         *repository.Store
	stats         *StatsService
	ai            *ai.Service
	subscriptions *SubscriptionService
	now           func() time.Time
}

func NewStepService(store *repository.Store, stats *StatsService, aiService *ai.Service, subscriptions *SubscriptionService) *StepService {
	return &StepService{
		store:         store,
		stats:         stats,
		ai:            aiService,
		subscriptions: subscriptions,
		now:           time.Now,
	}
}

// UpdateStatus changes a step's status. In one transaction it updates the
// step, completes the goal when no open steps remain and records the stats
// events. Setting the status a step already has changes nothing.
func (s *StepService) UpdateStatus(ctx context.Context, userID, stepID, status string) (*StatusChange, error) {
	if !model.IsStepStatus(status) {
		return nil, Invalid("invalid status %q", status)
	}

	var change *StatusChange
	err := s.stats.retryConflicts(ctx, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			var err error
			change, err = s.updateStatus(ctx, tx, userID, stepID, status)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if change.GoalCompleted {
		slog.Info("goal completed", "user_id", userID, "goal_id", change.Step.GoalID)
	}
	return change, nil
}

func (s *StepService) updateStatus(ctx context.Context, tx *repository.Store, userID, stepID, status string) (*StatusChange, error) {
	now := s.now().UTC()

	step, err := tx.Steps.ByIDForUser(ctx, userID, stepID)
	if err != nil {
		return nil, err
	}
	err = tx.Goals.Touch(ctx, step.GoalID, now)
	if err != nil {
		return nil, err
	}
	// Re-read under the goal lock.
	step, err = tx.Steps.ByIDForUser(ctx, userID, stepID)
	if err != nil {
		return nil, err
	}

	change := &StatusChange{Step: step}
	if step.Status == status {
		return change, nil
	}

	step.Status = status
	if status == model.StepStatusCompleted {
		step.CompletedAt = &now
	} else {
		step.CompletedAt = nil
	}
	err = tx.Steps.Update(ctx, step)
	if err != nil {
		return nil, fmt.Errorf("failed to update step: %w", err)
	}
	change.Changed = true

	if status != model.StepStatusCompleted {
		return change, nil
	}

	change.Stats, err = s.stats.record(ctx, tx, userID, model.ActivityStepCompleted, now)
	if err != nil {
		return nil, err
	}

	open, err := tx.Steps.CountIncomplete(ctx, step.GoalID)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return change, nil
	}

	completed, err := tx.Goals.MarkCompleted(ctx, step.GoalID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to complete goal: %w", err)
	}
	if !completed {
		return change, nil
	}

	change.GoalCompleted = true
	change.Stats, err = s.stats.record(ctx, tx, userID, model.ActivityGoalCompleted, now)
	if err != nil {
		return nil, err
	}
	return change, nil
}

// Edit updates a step's title, description or due date.
func (s *StepService) Edit(ctx context.Context, userID, stepID string, e StepEdit) (*model.Step, error) {
	step, err := s.store.Steps.ByIDForUser(ctx, userID, stepID)
	if err != nil {
		return nil, err
	}

	if e.Title != nil {
		title := strings.TrimSpace(*e.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
			return nil, Invalid("title must be between 1 and %d characters", maxTitleLength)
		}
		step.Title = title
	}
	if e.Description != nil {
		if utf8.RuneCountInString(*e.Description) > maxTextLength {
			return nil, Invalid("description must be at most %d characters", maxTextLength)
		}
		step.Description = strings.TrimSpace(*e.Description)
	}
	if e.DueDate != nil {
		if *e.DueDate == "" {
			step.DueDate = nil
		} else {
			day, err := model.ParseDay(*e.DueDate)
			if err != nil {
				return nil, Invalid("dueDate must be a date in YYYY-MM-DD format")
			}
			step.DueDate = &day
		}
	}

	err = s.store.Steps.Update(ctx, step)
	if err != nil {
		return nil, fmt.Errorf("failed to update step: %w", err)
	}
	return step, nil
}

type Breakdown struct {
	StepID   string   `json:"stepId"`
	Tasks    []string `json:"tasks"`
	Fallback bool     `json:"fallback"`
}

// Breakdown suggests smaller tasks for a step. Pro only.
func (s *StepService) Breakdown(ctx context.Context, userID, stepID string) (*Breakdown, error) {
	err := s.subscriptions.RequireFeature(ctx, userID, model.FeatureBreakdown)
	if err != nil {
		return nil, err
	}

	step, err := s.store.Steps.ByIDForUser(ctx, userID, stepID)
	if err != nil {
		return nil, err
	}
	goal, err := s.store.Goals.ByID(ctx, userID, step.GoalID)
	if err != nil {
		return nil, err
	}

	tasks, fallback := s.ai.Breakdown(ctx, ai.BreakdownRequest{
		GoalTitle:       goal.Title,
		StepTitle:       step.Title,
		StepDescription: step.Description,
	})
	return &Breakdown{StepID: step.ID, Tasks: tasks, Fallback: fallback}, nil
}
