package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stepwise-app/stepwise/internal/model"
)

var (
	ErrStepNotFound = errors.New("step not found")
)

type StepRepository interface {
	CreateMany(ctx context.Context, steps []*model.Step) error
	ByGoal(ctx context.Context, goalID string) ([]*model.Step, error)
	// ByIDForUser loads a step only if its goal belongs to userID.
	ByIDForUser(ctx context.Context, userID, stepID string) (*model.Step, error)
	Update(ctx context.Context, step *model.Step) error
	SetOrder(ctx context.Context, stepID string, orderNum int) error
	CountIncomplete(ctx context.Context, goalID string) (int, error)
	// ProgressByUser returns step completion per goal for every goal of userID.
	ProgressByUser(ctx context.Context, userID string) (map[string]model.GoalProgress, error)
	OverdueForUser(ctx context.Context, userID string, today time.Time) ([]*model.Step, error)
}

type stepRepository struct {
	db DBTX
}

func NewStepRepository(db DBTX) StepRepository {
	return &stepRepository{db: db}
}

func (r *stepRepository) CreateMany(ctx context.Context, steps []*model.Step) error {
	query := `INSERT INTO steps (id, goal_id, order_num, title, description, due_date, status, completed_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, s := range steps {
		_, err := r.db.ExecContext(ctx, query,
			s.ID, s.GoalID, s.OrderNum, s.Title, s.Description, s.DueDate, s.Status, s.CompletedAt, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create step %d: %w", s.OrderNum, err)
		}
	}
	return nil
}

func (r *stepRepository) ByGoal(ctx context.Context, goalID string) ([]*model.Step, error) {
	var steps []*model.Step
	query := `SELECT * FROM steps WHERE goal_id = $1 ORDER BY order_num ASC`

	err := r.db.SelectContext(ctx, &steps, query, goalID)
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *stepRepository) ByIDForUser(ctx context.Context, userID, stepID string) (*model.Step, error) {
	step := &model.Step{}
	query := `SELECT s.* FROM steps s
	          JOIN goals g ON g.id = s.goal_id
	          WHERE s.id = $1 AND g.user_id = $2`

	err := r.db.GetContext(ctx, step, query, stepID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStepNotFound
	}
	if err != nil {
		return nil, err
	}
	return step, nil
}

func (r *stepRepository) Update(ctx context.Context, step *model.Step) error {
	query := `UPDATE steps
	          SET title = $1, description = $2, due_date = $3, status = $4, completed_at = $5
	          WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		step.Title, step.Description, step.DueDate, step.Status, step.CompletedAt, step.ID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrStepNotFound)
}

func (r *stepRepository) SetOrder(ctx context.Context, stepID string, orderNum int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE steps SET order_num = $1 WHERE id = $2`, orderNum, stepID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrStepNotFound)
}

func (r *stepRepository) CountIncomplete(ctx context.Context, goalID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM steps WHERE goal_id = $1 AND status <> $2`
	err := r.db.GetContext(ctx, &count, query, goalID, model.StepStatusCompleted)
	return count, err
}

func (r *stepRepository) ProgressByUser(ctx context.Context, userID string) (map[string]model.GoalProgress, error) {
	var rows []struct {
		GoalID    string `db:"goal_id"`
		Total     int    `db:"total"`
		Completed int    `db:"completed"`
	}
	query := `SELECT s.goal_id AS goal_id, COUNT(*) AS total,
	                 SUM(CASE WHEN s.status = $1 THEN 1 ELSE 0 END) AS completed
	          FROM steps s JOIN goals g ON g.id = s.goal_id
	          WHERE g.user_id = $2
	          GROUP BY s.goal_id`

	err := r.db.SelectContext(ctx, &rows, query, model.StepStatusCompleted, userID)
	if err != nil {
		return nil, err
	}

	progress := make(map[string]model.GoalProgress, len(rows))
	for _, row := range rows {
		p := model.GoalProgress{TotalSteps: row.Total, CompletedSteps: row.Completed}
		if p.TotalSteps > 0 {
			p.Percent = p.CompletedSteps * 100 / p.TotalSteps
		}
		progress[row.GoalID] = p
	}
	return progress, nil
}

func (r *stepRepository) OverdueForUser(ctx context.Context, userID string, today time.Time) ([]*model.Step, error) {
	var steps []*model.Step
	query := `SELECT s.* FROM steps s
	          JOIN goals g ON g.id = s.goal_id
	          WHERE g.user_id = $1 AND g.status = $2
	            AND s.due_date IS NOT NULL AND s.due_date < $3
	            AND s.status NOT IN ($4, $5)
	          ORDER BY s.due_date ASC`

	err := r.db.SelectContext(ctx, &steps, query,
		userID, model.GoalStatusActive, today, model.StepStatusCompleted, model.StepStatusSkipped)
	if err != nil {
		return nil, err
	}
	return steps, nil
}
