package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stepwise-app/stepwise/internal/model"
)

var (
	ErrStatsNotFound = errors.New("user stats not found")
)

type StatsRepository interface {
	// Ensure creates an empty stats row for userID if none exists.
	Ensure(ctx context.Context, userID string, now time.Time) error
	ByUserID(ctx context.Context, userID string) (*model.UserStats, error)
	// CompareAndSwap writes stats if the stored version still equals stats.Version,
	// then bumps the version. It returns ErrConflict when another writer got there first.
	CompareAndSwap(ctx context.Context, stats *model.UserStats) error
}

type statsRepository struct {
	db DBTX
}

func NewStatsRepository(db DBTX) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Ensure(ctx context.Context, userID string, now time.Time) error {
	query := `INSERT INTO user_stats (user_id, updated_at) VALUES ($1, $2)
	          ON CONFLICT (user_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, userID, now)
	return err
}

func (r *statsRepository) ByUserID(ctx context.Context, userID string) (*model.UserStats, error) {
	stats := &model.UserStats{}
	err := r.db.GetContext(ctx, stats, `SELECT * FROM user_stats WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatsNotFound
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *statsRepository) CompareAndSwap(ctx context.Context, s *model.UserStats) error {
	query := `UPDATE user_stats
	          SET current_streak = $1, longest_streak = $2, total_steps_completed = $3,
	              total_goals_completed = $4, last_activity_date = $5, updated_at = $6,
	              version = version + 1
	          WHERE user_id = $7 AND version = $8`

	result, err := r.db.ExecContext(ctx, query,
		s.CurrentStreak, s.LongestStreak, s.TotalStepsCompleted, s.TotalGoalsCompleted,
		s.LastActivityDate, s.UpdatedAt, s.UserID, s.Version)
	if err != nil {
		return err
	}
	err = expectRows(result, ErrConflict)
	if err != nil {
		return err
	}
	s.Version++
	return nil
}
