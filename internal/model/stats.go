package model

import (
	"time"
)

const (
	ActivityStepCompleted = "step_completed"
	ActivityGoalCompleted = "goal_completed"
	ActivityGeneric       = "activity"
)

type UserStats struct {
	UserID              string     `db:"user_id" json:"userId"`
	CurrentStreak       int        `db:"current_streak" json:"currentStreak"`
	LongestStreak       int        `db:"longest_streak" json:"longestStreak"`
	TotalStepsCompleted int        `db:"total_steps_completed" json:"totalStepsCompleted"`
	TotalGoalsCompleted int        `db:"total_goals_completed" json:"totalGoalsCompleted"`
	LastActivityDate    *time.Time `db:"last_activity_date" json:"lastActivityDate,omitempty"`
	Version             int        `db:"version" json:"-"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

func IsActivity(s string) bool {
	switch s {
	case ActivityStepCompleted, ActivityGoalCompleted, ActivityGeneric:
		return true
	}
	return false
}
