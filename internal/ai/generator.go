// Package ai drafts goal plans, check-in coaching and step breakdowns with a
// generative text model. Every call is bounded by a timeout and falls back to
// canned content on failure.
package ai

import (
	"context"
)

// Completion is a single prompt sent to a Generator.
type Completion struct {
	Name        string // prompt template name: plan, coach or breakdown
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	JSON        bool // ask the model for a JSON object
}

// Generator produces text for a completion.
type Generator interface {
	Complete(ctx context.Context, c Completion) (string, error)
}
