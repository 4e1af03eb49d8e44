package repository

import (
	"context"

	"github.com/stepwise-app/stepwise/internal/model"
)

type CheckInRepository interface {
	Create(ctx context.Context, checkIn *model.CheckIn) error
	ByGoal(ctx context.Context, goalID string, publicOnly bool) ([]*model.CheckIn, error)
}

type checkInRepository struct {
	db DBTX
}

func NewCheckInRepository(db DBTX) CheckInRepository {
	return &checkInRepository{db: db}
}

func (r *checkInRepository) Create(ctx context.Context, c *model.CheckIn) error {
	query := `INSERT INTO check_ins (id, goal_id, user_id, type, mood, content, image_path, is_public, ai_response, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.GoalID, c.UserID, c.Type, c.Mood, c.Content, c.ImagePath, c.IsPublic, c.AIResponse, c.CreatedAt)
	return err
}

func (r *checkInRepository) ByGoal(ctx context.Context, goalID string, publicOnly bool) ([]*model.CheckIn, error) {
	var checkIns []*model.CheckIn
	query := `SELECT * FROM check_ins WHERE goal_id = $1`
	if publicOnly {
		query += ` AND is_public = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &checkIns, query, goalID)
	if err != nil {
		return nil, err
	}
	return checkIns, nil
}
