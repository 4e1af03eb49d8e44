package service

import (
	"time"

	"github.com/stepwise-app/stepwise/internal/model"
)

// StepDraft is a step extracted from a plan, before it is persisted.
type StepDraft struct {
	Title       string
	Description string
	DueDate     *time.Time
}

// ExtractSteps maps plan steps to drafts in source order with no due dates.
func ExtractSteps(plan model.Plan) []StepDraft {
	drafts := make([]StepDraft, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		drafts = append(drafts, StepDraft{Title: s.Title, Description: s.Description})
	}
	return drafts
}

// CalculateDueDates spreads [start, deadline] evenly over the drafts: step i
// is due start + floor(totalDays/len)*(i+1). When there are more steps than
// days every due date collapses to start. Without a deadline, or with no
// steps, the drafts are returned unchanged.
func CalculateDueDates(drafts []StepDraft, deadline *time.Time, start time.Time) []StepDraft {
	if deadline == nil || len(drafts) == 0 {
		return drafts
	}

	startDay := model.Day(start)
	totalDays := max(model.DaysBetween(startDay, *deadline), 0)
	daysPerStep := totalDays / len(drafts)

	out := make([]StepDraft, len(drafts))
	for i, d := range drafts {
		due := startDay.AddDate(0, 0, daysPerStep*(i+1))
		d.DueDate = &due
		out[i] = d
	}
	return out
}
