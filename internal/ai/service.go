package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stepwise-app/stepwise/internal/markdown"
	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/validation"
)

const fallbackCoaching = "Thanks for checking in. Every entry keeps your momentum going, so pick the next small step and schedule it."

var fallbackTasks = []string{
	"Write down what finishing this step looks like",
	"Spend 25 focused minutes on the first piece",
	"Note what is left and schedule the next session",
}

type PlanRequest struct {
	Title          string
	Why            string
	Deadline       *time.Time
	TimeCommitment string
	BiggestConcern string
}

type CoachRequest struct {
	GoalTitle      string
	Type           string
	Mood           string
	Content        string
	CompletedSteps int
	TotalSteps     int
}

type BreakdownRequest struct {
	GoalTitle       string
	StepTitle       string
	StepDescription string
}

// Service wraps a Generator with prompts, timeouts and fallback content.
type Service struct {
	gen     Generator
	timeout time.Duration
	prompts map[string]prompt
}

func NewService(gen Generator, timeout time.Duration) (*Service, error) {
	prompts, err := loadPrompts(markdown.NewParser())
	if err != nil {
		return nil, err
	}
	return &Service{gen: gen, timeout: timeout, prompts: prompts}, nil
}

// Plan drafts a roadmap for a new goal. On error, timeout or an unusable
// response it returns the generic plan and fallback=true.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (plan model.Plan, fallback bool) {
	var user strings.Builder
	fmt.Fprintf(&user, "Goal: %s\n", req.Title)
	if req.Why != "" {
		fmt.Fprintf(&user, "Why it matters: %s\n", req.Why)
	}
	if req.Deadline != nil {
		fmt.Fprintf(&user, "Deadline: %s\n", req.Deadline.Format(time.DateOnly))
	}
	if req.TimeCommitment != "" {
		fmt.Fprintf(&user, "Time available: %s\n", req.TimeCommitment)
	}
	if req.BiggestConcern != "" {
		fmt.Fprintf(&user, "Biggest concern: %s\n", req.BiggestConcern)
	}

	raw, err := s.complete(ctx, s.prompts[promptPlan].completion(user.String()))
	if err != nil {
		slog.Warn("plan generation failed, using fallback plan", "error", err)
		return model.FallbackPlan(req.Title), true
	}

	plan, err = ParsePlan(raw)
	if err != nil {
		slog.Warn("generated plan rejected, using fallback plan", "error", err)
		return model.FallbackPlan(req.Title), true
	}
	return plan, false
}

// Coach writes a short response to a check-in.
func (s *Service) Coach(ctx context.Context, req CoachRequest) (text string, fallback bool) {
	var user strings.Builder
	fmt.Fprintf(&user, "Goal: %s\n", req.GoalTitle)
	fmt.Fprintf(&user, "Progress: %d of %d steps completed\n", req.CompletedSteps, req.TotalSteps)
	fmt.Fprintf(&user, "Check-in type: %s\n", req.Type)
	if req.Mood != "" {
		fmt.Fprintf(&user, "Mood: %s\n", req.Mood)
	}
	if req.Content != "" {
		fmt.Fprintf(&user, "Entry:\n%s\n", req.Content)
	}

	raw, err := s.complete(ctx, s.prompts[promptCoach].completion(user.String()))
	text = strings.TrimSpace(raw)
	if err != nil || text == "" {
		slog.Warn("coaching generation failed, using fallback response", "error", err)
		return fallbackCoaching, true
	}
	return text, false
}

// Breakdown splits a step into smaller tasks.
func (s *Service) Breakdown(ctx context.Context, req BreakdownRequest) (tasks []string, fallback bool) {
	user := fmt.Sprintf("Goal: %s\nStep: %s\nDetails: %s\n", req.GoalTitle, req.StepTitle, req.StepDescription)

	raw, err := s.complete(ctx, s.prompts[promptBreakdown].completion(user))
	if err == nil {
		tasks, err = parseTasks(raw)
	}
	if err != nil {
		slog.Warn("step breakdown failed, using fallback tasks", "error", err)
		return append([]string(nil), fallbackTasks...), true
	}
	return tasks, false
}

func (s *Service) complete(ctx context.Context, c Completion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := s.gen.Complete(ctx, c)
		done <- result{text, err}
	}()

	// Generators that ignore ctx still cannot hold the request past the timeout.
	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%s completion: %w", c.Name, ctx.Err())
	}
}

// ParsePlan decodes a generated plan, filling in defaults for missing
// optional fields and rejecting plans without usable steps.
func ParsePlan(raw string) (model.Plan, error) {
	var plan model.Plan
	err := json.Unmarshal([]byte(stripFences(raw)), &plan)
	if err != nil {
		return model.Plan{}, fmt.Errorf("invalid plan json: %w", err)
	}

	steps := plan.Steps[:0]
	for _, step := range plan.Steps {
		step.Title = strings.TrimSpace(step.Title)
		step.Description = strings.TrimSpace(step.Description)
		if step.Title == "" {
			continue
		}
		steps = append(steps, step)
	}
	for i := range steps {
		steps[i].Order = i + 1
	}
	plan.Steps = steps

	plan.Overview = strings.TrimSpace(plan.Overview)
	if plan.Overview == "" {
		plan.Overview = "Work through the steps below in order."
	}
	if strings.TrimSpace(plan.Timeline) == "" {
		plan.Timeline = "Move through one step at a time and review progress weekly."
	}
	if plan.Tips == nil {
		plan.Tips = []string{}
	}

	err = validation.Struct(plan)
	if err != nil {
		return model.Plan{}, fmt.Errorf("invalid plan: %w", err)
	}
	return plan, nil
}

func parseTasks(raw string) ([]string, error) {
	var out struct {
		Tasks []string `json:"tasks"`
	}
	err := json.Unmarshal([]byte(stripFences(raw)), &out)
	if err != nil {
		return nil, fmt.Errorf("invalid breakdown json: %w", err)
	}

	tasks := make([]string, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		if t = strings.TrimSpace(t); t != "" {
			tasks = append(tasks, t)
		}
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("breakdown returned no tasks")
	}
	return tasks, nil
}

// stripFences removes a surrounding ```json code fence some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
