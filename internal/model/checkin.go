package model

import (
	"time"
)

const (
	CheckInTypeDaily          = "daily"
	CheckInTypeWeekly         = "weekly"
	CheckInTypeStepCompletion = "step_completion"
	CheckInTypeMilestone      = "milestone"
)

const (
	MoodGreat      = "great"
	MoodGood       = "good"
	MoodStruggling = "struggling"
	MoodStuck      = "stuck"
)

type CheckIn struct {
	ID         string    `db:"id" json:"id"`
	GoalID     string    `db:"goal_id" json:"goalId"`
	UserID     string    `db:"user_id" json:"userId"`
	Type       string    `db:"type" json:"type"`
	Mood       *string   `db:"mood" json:"mood,omitempty"`
	Content    string    `db:"content" json:"content"`
	ImagePath  *string   `db:"image_path" json:"-"`
	IsPublic   bool      `db:"is_public" json:"isPublic"`
	AIResponse string    `db:"ai_response" json:"aiResponse"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`

	// Computed fields (not in database)
	ImageURL    string `db:"-" json:"imageUrl,omitempty"`
	ContentHTML string `db:"-" json:"contentHtml,omitempty"`
}

func IsCheckInType(s string) bool {
	switch s {
	case CheckInTypeDaily, CheckInTypeWeekly, CheckInTypeStepCompletion, CheckInTypeMilestone:
		return true
	}
	return false
}

func IsMood(s string) bool {
	switch s {
	case MoodGreat, MoodGood, MoodStruggling, MoodStuck:
		return true
	}
	return false
}
