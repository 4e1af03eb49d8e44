package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ErrConflict is returned when an optimistic update lost a race with another writer.
var ErrConflict = errors.New("concurrent update conflict")

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Store groups the repositories over one connection or transaction.
type Store struct {
	db *sqlx.DB
	tx *sqlx.Tx

	Users         UserRepository
	Goals         GoalRepository
	Steps         StepRepository
	CheckIns      CheckInRepository
	Stats         StatsRepository
	Subscriptions SubscriptionRepository
	Files         FileRepository
}

func NewStore(db *sqlx.DB) *Store {
	return newStore(db, nil, db)
}

func newStore(db *sqlx.DB, tx *sqlx.Tx, q DBTX) *Store {
	return &Store{
		db:            db,
		tx:            tx,
		Users:         NewUserRepository(q),
		Goals:         NewGoalRepository(q),
		Steps:         NewStepRepository(q),
		CheckIns:      NewCheckInRepository(q),
		Stats:         NewStatsRepository(q),
		Subscriptions: NewSubscriptionRepository(q),
		Files:         NewFileRepository(q),
	}
}

// InTx runs fn against a Store bound to a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Calling InTx on a Store
// that is already transactional reuses the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = fn(newStore(s.db, tx, tx))
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isUniqueViolation detects unique constraint failures for both SQLite and PostgreSQL.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
