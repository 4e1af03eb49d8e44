package model

import (
	"time"
)

const (
	GoalStatusActive    = "active"
	GoalStatusPaused    = "paused"
	GoalStatusCompleted = "completed"
	GoalStatusAbandoned = "abandoned"
)

const (
	VisibilityPrivate  = "private"
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
)

// goalTransitions lists the statuses a user may move a goal to from each status.
// Abandoned is terminal. Completed can only be abandoned.
var goalTransitions = map[string][]string{
	GoalStatusActive:    {GoalStatusPaused, GoalStatusCompleted, GoalStatusAbandoned},
	GoalStatusPaused:    {GoalStatusActive, GoalStatusAbandoned},
	GoalStatusCompleted: {GoalStatusAbandoned},
	GoalStatusAbandoned: {},
}

type Goal struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"userId"`
	Title          string     `db:"title" json:"title"`
	Slug           string     `db:"slug" json:"slug"`
	Why            string     `db:"why" json:"why"`
	Deadline       *time.Time `db:"deadline" json:"deadline,omitempty"`
	TimeCommitment string     `db:"time_commitment" json:"timeCommitment"`
	BiggestConcern string     `db:"biggest_concern" json:"biggestConcern"`
	Plan           Plan       `db:"plan" json:"plan"`
	Status         string     `db:"status" json:"status"`
	Visibility     string     `db:"visibility" json:"visibility"`
	StartedAt      time.Time  `db:"started_at" json:"startedAt"`
	CompletedAt    *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

func IsGoalStatus(s string) bool {
	_, ok := goalTransitions[s]
	return ok
}

func IsVisibility(s string) bool {
	switch s {
	case VisibilityPrivate, VisibilityPublic, VisibilityUnlisted:
		return true
	}
	return false
}

// CanTransition reports whether a user may move a goal from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range goalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsPubliclyReadable reports whether non-owners may view the goal's progress page.
// Unlisted goals are readable by link but never listed.
func (g *Goal) IsPubliclyReadable() bool {
	return g.Visibility == VisibilityPublic || g.Visibility == VisibilityUnlisted
}

// GoalProgress summarizes step completion for a goal.
type GoalProgress struct {
	TotalSteps     int `json:"totalSteps"`
	CompletedSteps int `json:"completedSteps"`
	Percent        int `json:"percent"`
}

func Progress(steps []*Step) GoalProgress {
	p := GoalProgress{TotalSteps: len(steps)}
	for _, s := range steps {
		if s.Status == StepStatusCompleted {
			p.CompletedSteps++
		}
	}
	if p.TotalSteps > 0 {
		p.Percent = p.CompletedSteps * 100 / p.TotalSteps
	}
	return p
}
