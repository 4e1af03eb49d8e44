package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/stepwise-app/stepwise/internal/markdown"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
)

type PublicProfile struct {
	Username      string         `json:"username"`
	DisplayName   string         `json:"displayName"`
	CurrentStreak int            `json:"currentStreak"`
	LongestStreak int            `json:"longestStreak"`
	Goals         []*GoalSummary `json:"goals"`
}

type PublicGoal struct {
	Username     string             `json:"username"`
	DisplayName  string             `json:"displayName"`
	Goal         *model.Goal        `json:"goal"`
	OverviewHTML string             `json:"overviewHtml"`
	Steps        []*model.Step      `json:"steps"`
	Progress     model.GoalProgress `json:"progress"`
	CheckIns     []*model.CheckIn   `json:"checkIns"`
}

// PublicService serves progress pages to visitors. Only public goals are
// listed; unlisted goals are reachable by slug.
type PublicService struct {
	store    *repository.Store
	files    *FileService
	markdown *markdown.Parser
}

func NewPublicService(store *repository.Store, files *FileService, parser *markdown.Parser) *PublicService {
	return &PublicService{store: store, files: files, markdown: parser}
}

func (s *PublicService) Profile(ctx context.Context, username string) (*PublicProfile, error) {
	user, err := s.store.Users.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	goals, err := s.store.Goals.PublicGoals(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list public goals: %w", err)
	}
	progress, err := s.store.Steps.ProgressByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	profile := &PublicProfile{
		Username:    username,
		DisplayName: user.DisplayName(),
		Goals: lo.Map(goals, func(g *model.Goal, _ int) *GoalSummary {
			return &GoalSummary{Goal: g, Progress: progress[g.ID]}
		}),
	}

	stats, err := s.store.Stats.ByUserID(ctx, user.ID)
	if err == nil {
		profile.CurrentStreak = stats.CurrentStreak
		profile.LongestStreak = stats.LongestStreak
	} else if !errors.Is(err, repository.ErrStatsNotFound) {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return profile, nil
}

// Goal returns a public or unlisted goal's progress page. Private goals are
// reported as not found.
func (s *PublicService) Goal(ctx context.Context, username, slug string) (*PublicGoal, error) {
	user, err := s.store.Users.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, repository.ErrGoalNotFound
		}
		return nil, err
	}

	goal, err := s.store.Goals.BySlug(ctx, user.ID, slug)
	if err != nil {
		return nil, err
	}
	if !goal.IsPubliclyReadable() {
		return nil, repository.ErrGoalNotFound
	}

	steps, err := s.store.Steps.ByGoal(ctx, goal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	checkIns, err := s.store.CheckIns.ByGoal(ctx, goal.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get check-ins: %w", err)
	}
	for _, c := range checkIns {
		c.ContentHTML = s.markdown.RenderString(c.Content)
		if c.ImagePath != nil {
			c.ImageURL = s.files.URL(ctx, *c.ImagePath)
		}
	}

	return &PublicGoal{
		Username:     username,
		DisplayName:  user.DisplayName(),
		Goal:         goal,
		OverviewHTML: s.markdown.RenderString(goal.Plan.Overview),
		Steps:        steps,
		Progress:     model.Progress(steps),
		CheckIns:     checkIns,
	}, nil
}
