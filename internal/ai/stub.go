package ai

import (
	"context"
	"log/slog"
)

// StubGenerator returns canned content without calling any provider. It is
// used in development when no API key is configured.
type StubGenerator struct{}

func (StubGenerator) Complete(ctx context.Context, c Completion) (string, error) {
	slog.Debug("ai stub completion", "prompt", c.Name)

	switch c.Name {
	case promptPlan:
		return `{
  "overview": "Build the habit first, then increase intensity week by week.",
  "steps": [
    {"title": "Set a baseline", "description": "Measure where you are today.", "order": 1},
    {"title": "Build a routine", "description": "Work on the goal three times a week.", "order": 2},
    {"title": "Push to the finish", "description": "Increase effort and review progress weekly.", "order": 3}
  ],
  "timeline": "Spread the steps evenly until the deadline.",
  "tips": ["Log every session, even short ones."]
}`, nil
	case promptBreakdown:
		return `{"tasks": ["Write down what done looks like", "Do the first 20 minutes", "Review and plan the next session"]}`, nil
	default:
		return "Nice work showing up today. Keep the next step small and do it tomorrow.", nil
	}
}
