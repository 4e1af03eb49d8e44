package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Plan is the generated roadmap stored alongside a goal.
type Plan struct {
	Overview string     `json:"overview" validate:"required"`
	Steps    []PlanStep `json:"steps" validate:"required,min=1,max=20,dive"`
	Timeline string     `json:"timeline"`
	Tips     []string   `json:"tips" validate:"dive,required"`
}

type PlanStep struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Order       int    `json:"order" validate:"gte=0"`
}

// Value stores the plan as JSON text.
func (p Plan) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a plan stored by Value. Postgres returns []byte, SQLite a string.
func (p *Plan) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*p = Plan{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("unsupported plan column type %T", src)
	}
	return json.Unmarshal(b, p)
}

// FallbackPlan is used whenever the generator fails or returns something unusable.
func FallbackPlan(title string) Plan {
	return Plan{
		Overview: fmt.Sprintf("A simple roadmap to get started on %q. Adjust the steps as you learn more.", title),
		Steps: []PlanStep{
			{Title: "Define what success looks like", Description: "Write down a concrete, measurable outcome for this goal.", Order: 1},
			{Title: "Break the work into milestones", Description: "List the three to five milestones that lead to that outcome.", Order: 2},
			{Title: "Schedule your first session", Description: "Block time in your calendar and do the smallest useful piece of work.", Order: 3},
			{Title: "Review progress weekly", Description: "Check in every week, note what worked and adjust the plan.", Order: 4},
		},
		Timeline: "Work through one step at a time and revisit the plan weekly.",
		Tips: []string{
			"Start small and keep momentum.",
			"Check in often, even on days with little progress.",
		},
	}
}
