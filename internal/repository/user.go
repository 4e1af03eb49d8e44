package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stepwise-app/stepwise/internal/model"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

type UserRepository interface {
	// Upsert creates the user or refreshes the identity fields of an existing row.
	Upsert(ctx context.Context, user *model.User) error
	// CreateIfMissing inserts the user unless a row with the same id exists.
	CreateIfMissing(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByUsername(ctx context.Context, username string) (*model.User, error)
	SetUsername(ctx context.Context, id, username string, now time.Time) error
	Delete(ctx context.Context, id string) error
	// ReminderCandidates returns users with at least one active goal and no
	// activity recorded on or after today.
	ReminderCandidates(ctx context.Context, today time.Time) ([]*model.User, error)
}

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, first_name, last_name, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (id) DO UPDATE
	          SET email = excluded.email, first_name = excluded.first_name,
	              last_name = excluded.last_name, updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.FirstName, user.LastName, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *userRepository) CreateIfMissing(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, first_name, last_name, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.FirstName, user.LastName, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) ByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE username = $1`

	err := r.db.GetContext(ctx, user, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) SetUsername(ctx context.Context, id, username string, now time.Time) error {
	query := `UPDATE users SET username = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, username, now, id)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return err
	}
	return expectRows(result, ErrUserNotFound)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectRows(result, ErrUserNotFound)
}

func (r *userRepository) ReminderCandidates(ctx context.Context, today time.Time) ([]*model.User, error) {
	var users []*model.User
	query := `SELECT u.* FROM users u
	          LEFT JOIN user_stats s ON s.user_id = u.id
	          WHERE EXISTS (SELECT 1 FROM goals g WHERE g.user_id = u.id AND g.status = $1)
	            AND (s.last_activity_date IS NULL OR s.last_activity_date < $2)
	          ORDER BY u.created_at`

	err := r.db.SelectContext(ctx, &users, query, model.GoalStatusActive, today)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// expectRows maps a zero-row update or delete to notFound.
func expectRows(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
