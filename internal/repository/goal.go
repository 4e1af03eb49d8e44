package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stepwise-app/stepwise/internal/model"
)

var (
	ErrGoalNotFound = errors.New("goal not found")
	ErrSlugTaken    = errors.New("slug already used by another goal")
)

type GoalRepository interface {
	Create(ctx context.Context, goal *model.Goal) error
	ByID(ctx context.Context, userID, goalID string) (*model.Goal, error)
	BySlug(ctx context.Context, userID, slug string) (*model.Goal, error)
	Exists(ctx context.Context, goalID string) (bool, error)
	SlugExists(ctx context.Context, userID, slug string) (bool, error)
	Goals(ctx context.Context, userID string) ([]*model.Goal, error)
	PublicGoals(ctx context.Context, userID string) ([]*model.Goal, error)
	CountActive(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, goal *model.Goal) error
	// Touch bumps updated_at. Inside a transaction it also takes the goal's row
	// lock, serializing concurrent step mutations of the same goal.
	Touch(ctx context.Context, goalID string, now time.Time) error
	// MarkCompleted moves an active goal to completed. Paused and abandoned
	// goals are left alone. It reports whether this call performed the transition.
	MarkCompleted(ctx context.Context, goalID string, now time.Time) (bool, error)
	Delete(ctx context.Context, userID, goalID string) error
}

type goalRepository struct {
	db DBTX
}

func NewGoalRepository(db DBTX) GoalRepository {
	return &goalRepository{db: db}
}

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	query := `INSERT INTO goals (id, user_id, title, slug, why, deadline, time_commitment, biggest_concern,
	                             plan, status, visibility, started_at, completed_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.ExecContext(ctx, query,
		goal.ID,
		goal.UserID,
		goal.Title,
		goal.Slug,
		goal.Why,
		goal.Deadline,
		goal.TimeCommitment,
		goal.BiggestConcern,
		goal.Plan,
		goal.Status,
		goal.Visibility,
		goal.StartedAt,
		goal.CompletedAt,
		goal.CreatedAt,
		goal.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	return err
}

func (r *goalRepository) ByID(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	return r.get(ctx, `SELECT * FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID)
}

func (r *goalRepository) BySlug(ctx context.Context, userID, slug string) (*model.Goal, error) {
	return r.get(ctx, `SELECT * FROM goals WHERE user_id = $1 AND slug = $2`, userID, slug)
}

func (r *goalRepository) get(ctx context.Context, query string, args ...any) (*model.Goal, error) {
	goal := &model.Goal{}
	err := r.db.GetContext(ctx, goal, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}
	return goal, nil
}

func (r *goalRepository) Exists(ctx context.Context, goalID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM goals WHERE id = $1`, goalID)
	return n > 0, err
}

func (r *goalRepository) SlugExists(ctx context.Context, userID, slug string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM goals WHERE user_id = $1 AND slug = $2`, userID, slug)
	return n > 0, err
}

func (r *goalRepository) Goals(ctx context.Context, userID string) ([]*model.Goal, error) {
	var goals []*model.Goal
	query := `SELECT * FROM goals WHERE user_id = $1 ORDER BY updated_at DESC`

	err := r.db.SelectContext(ctx, &goals, query, userID)
	if err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *goalRepository) PublicGoals(ctx context.Context, userID string) ([]*model.Goal, error) {
	var goals []*model.Goal
	query := `SELECT * FROM goals WHERE user_id = $1 AND visibility = $2 ORDER BY updated_at DESC`

	err := r.db.SelectContext(ctx, &goals, query, userID, model.VisibilityPublic)
	if err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *goalRepository) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM goals WHERE user_id = $1 AND status = $2`
	err := r.db.GetContext(ctx, &count, query, userID, model.GoalStatusActive)
	return count, err
}

func (r *goalRepository) Update(ctx context.Context, goal *model.Goal) error {
	query := `UPDATE goals
	          SET title = $1, why = $2, status = $3, visibility = $4, completed_at = $5, updated_at = $6
	          WHERE id = $7 AND user_id = $8`

	result, err := r.db.ExecContext(ctx, query,
		goal.Title,
		goal.Why,
		goal.Status,
		goal.Visibility,
		goal.CompletedAt,
		goal.UpdatedAt,
		goal.ID,
		goal.UserID,
	)
	if err != nil {
		return err
	}
	return expectRows(result, ErrGoalNotFound)
}

func (r *goalRepository) Touch(ctx context.Context, goalID string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE goals SET updated_at = $1 WHERE id = $2`, now, goalID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrGoalNotFound)
}

func (r *goalRepository) MarkCompleted(ctx context.Context, goalID string, now time.Time) (bool, error) {
	query := `UPDATE goals SET status = $1, completed_at = $2, updated_at = $2
	          WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, model.GoalStatusCompleted, now, goalID, model.GoalStatusActive)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *goalRepository) Delete(ctx context.Context, userID, goalID string) error {
	query := `DELETE FROM goals WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, goalID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrGoalNotFound)
}
