package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stepwise-app/stepwise/internal/fallback"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

type ReconcileReport struct {
	Records  int `json:"records"`
	Replayed int `json:"replayed"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Reconciler replays goals from the fallback log into the database once it
// accepts writes again. Replayed and already present goals are removed from
// the log; failed ones stay for the next run.
type Reconciler struct {
	store    *repository.Store
	fallback *fallback.Store
	slugs    *SlugGenerator
	now      func() time.Time
}

func NewReconciler(store *repository.Store, fallbackStore *fallback.Store, slugs *SlugGenerator) *Reconciler {
	return &Reconciler{store: store, fallback: fallbackStore, slugs: slugs, now: time.Now}
}

func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	records, err := r.fallback.All()
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback log: %w", err)
	}

	report := &ReconcileReport{Records: len(records)}
	var done []string

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			break
		}

		exists, err := r.store.Goals.Exists(ctx, rec.Goal.ID)
		if err != nil {
			slog.Error("failed to check fallback goal", "error", err, "goal_id", rec.Goal.ID)
			report.Failed++
			continue
		}
		if exists {
			report.Skipped++
			done = append(done, rec.Goal.ID)
			continue
		}

		err = r.replay(ctx, rec)
		if err != nil {
			slog.Error("failed to replay fallback goal", "error", err, "goal_id", rec.Goal.ID, "user_id", rec.Goal.UserID)
			report.Failed++
			continue
		}
		report.Replayed++
		done = append(done, rec.Goal.ID)
	}

	if len(done) > 0 {
		err = r.fallback.Remove(done...)
		if err != nil {
			return report, fmt.Errorf("failed to compact fallback log: %w", err)
		}
	}

	slog.Info("fallback reconciliation finished", "records", report.Records, "replayed", report.Replayed,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (r *Reconciler) replay(ctx context.Context, rec *fallback.Record) error {
	now := r.now().UTC()
	goal := rec.Goal

	return r.store.InTx(ctx, func(tx *repository.Store) error {
		owner := &model.User{ID: goal.UserID}
		if rec.Owner != nil {
			owner = rec.Owner
		}
		owner.CreatedAt = now
		owner.UpdatedAt = now
		err := tx.Users.CreateIfMissing(ctx, owner)
		if err != nil {
			return fmt.Errorf("failed to ensure owner: %w", err)
		}

		taken, err := tx.Goals.SlugExists(ctx, goal.UserID, goal.Slug)
		if err != nil {
			return err
		}
		if taken || goal.Slug == "" {
			goal.Slug = r.slugs.Generate(ctx, tx.Goals, goal.Title, goal.UserID)
		}

		err = tx.Goals.Create(ctx, &goal)
		if err != nil {
			return fmt.Errorf("failed to create goal: %w", err)
		}
		return tx.Steps.CreateMany(ctx, rec.Steps)
	})
}
