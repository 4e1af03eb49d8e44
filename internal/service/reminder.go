package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

type ReminderReport struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// ReminderService emails users with active goals who have not been active
// today (UTC). It is triggered from outside, by the cron endpoint or stepctl.
type ReminderService struct {
	store *repository.Store
	email *EmailService
	now   func() time.Time
}

func NewReminderService(store *repository.Store, email *EmailService) *ReminderService {
	return &ReminderService{store: store, email: email, now: time.Now}
}

func (s *ReminderService) Send(ctx context.Context) (*ReminderReport, error) {
	today := model.Day(s.now())

	users, err := s.store.Users.ReminderCandidates(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder candidates: %w", err)
	}

	report := &ReminderReport{Candidates: len(users)}
	for _, u := range users {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		err := s.remind(ctx, u)
		if err != nil {
			slog.Error("failed to send reminder", "error", err, "user_id", u.ID)
			report.Failed++
			continue
		}
		report.Sent++
	}

	slog.Info("reminders sent", "candidates", report.Candidates, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

func (s *ReminderService) remind(ctx context.Context, u *model.User) error {
	goals, err := s.store.Goals.Goals(ctx, u.ID)
	if err != nil {
		return err
	}
	titles := lo.FilterMap(goals, func(g *model.Goal, _ int) (string, bool) {
		return g.Title, g.Status == model.GoalStatusActive
	})

	streak := 0
	stats, err := s.store.Stats.ByUserID(ctx, u.ID)
	switch {
	case err == nil:
		streak = stats.CurrentStreak
	case !errors.Is(err, repository.ErrStatsNotFound):
		return err
	}

	return s.email.SendReminderEmail(ctx, u.Email, u.DisplayName(), titles, streak)
}
