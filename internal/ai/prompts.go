package ai

import (
	"embed"
	"fmt"

	"github.com/stepwise-app/stepwise/internal/markdown"
)

const (
	promptPlan      = "plan"
	promptCoach     = "coach"
	promptBreakdown = "breakdown"
)

//go:embed prompts/*.md
var promptFS embed.FS

type prompt struct {
	name   string
	system string
	meta   promptMeta
}

type promptMeta struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	JSON        bool    `yaml:"json"`
}

func (p prompt) completion(user string) Completion {
	return Completion{
		Name:        p.name,
		System:      p.system,
		User:        user,
		MaxTokens:   p.meta.MaxTokens,
		Temperature: p.meta.Temperature,
		JSON:        p.meta.JSON,
	}
}

func loadPrompts(parser *markdown.Parser) (map[string]prompt, error) {
	prompts := make(map[string]prompt)
	for _, name := range []string{promptPlan, promptCoach, promptBreakdown} {
		source, err := promptFS.ReadFile("prompts/" + name + ".md")
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt %s: %w", name, err)
		}

		var meta promptMeta
		body, err := parser.Split(source, &meta)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt %s: %w", name, err)
		}
		prompts[name] = prompt{name: name, system: string(body), meta: meta}
	}
	return prompts, nil
}
