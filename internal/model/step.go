package model

import (
	"time"
)

const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
	StepStatusSkipped    = "skipped"
)

type Step struct {
	ID          string     `db:"id" json:"id"`
	GoalID      string     `db:"goal_id" json:"goalId"`
	OrderNum    int        `db:"order_num" json:"orderNum"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	DueDate     *time.Time `db:"due_date" json:"dueDate,omitempty"`
	Status      string     `db:"status" json:"status"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

func IsStepStatus(s string) bool {
	switch s {
	case StepStatusPending, StepStatusInProgress, StepStatusCompleted, StepStatusSkipped:
		return true
	}
	return false
}

// IsOverdue reports whether the step has a due date before today and is still open.
func (s *Step) IsOverdue(now time.Time) bool {
	if s.DueDate == nil || s.Status == StepStatusCompleted || s.Status == StepStatusSkipped {
		return false
	}
	return Day(*s.DueDate).Before(Day(now))
}

// StepOrder is one entry of a reorder request.
type StepOrder struct {
	StepID   string `json:"stepId"`
	OrderNum int    `json:"orderNum"`
}
