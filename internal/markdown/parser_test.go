package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEscapesRawHTML(t *testing.T) {
	p := NewParser()

	out := p.RenderString("Ran **5km** today\n<script>alert(1)</script>")
	assert.Contains(t, out, "<strong>5km</strong>")
	assert.NotContains(t, out, "<script>")
	assert.Equal(t, "", p.RenderString(""))
}

func TestSplit(t *testing.T) {
	p := NewParser()

	var meta struct {
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	}
	body, err := p.Split([]byte("---\nmax_tokens: 800\ntemperature: 0.4\n---\n\nYou are a coach.\nBe kind.\n"), &meta)
	require.NoError(t, err)
	assert.Equal(t, 800, meta.MaxTokens)
	assert.InDelta(t, 0.4, meta.Temperature, 0.0001)
	assert.Equal(t, "You are a coach.\nBe kind.", string(body))

	body, err = p.Split([]byte("No frontmatter here."), &meta)
	require.NoError(t, err)
	assert.Equal(t, "No frontmatter here.", string(body))
}
