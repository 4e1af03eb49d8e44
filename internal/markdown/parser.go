package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

// Parser renders user-authored markdown (check-in journals, plan text) and
// reads frontmatter from embedded prompt templates. Raw HTML in the source is
// never rendered.
type Parser struct {
	md goldmark.Markdown
}

func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			&frontmatter.Extender{},
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithXHTML(),
		),
	)

	return &Parser{md: md}
}

func (p *Parser) Render(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := p.md.Convert(source, &buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderString is Render for short strings; it returns "" on error.
func (p *Parser) RenderString(source string) string {
	if source == "" {
		return ""
	}
	out, err := p.Render([]byte(source))
	if err != nil {
		return ""
	}
	return string(out)
}

// Split decodes the YAML frontmatter of source into meta and returns the
// markdown body that follows it. A source without frontmatter is returned whole.
func (p *Parser) Split(source []byte, meta any) ([]byte, error) {
	ctx := parser.NewContext()
	p.md.Parser().Parse(text.NewReader(source), parser.WithContext(ctx))

	data := frontmatter.Get(ctx)
	if data == nil {
		return source, nil
	}
	if err := data.Decode(meta); err != nil {
		return nil, fmt.Errorf("failed to decode frontmatter: %w", err)
	}

	// Body starts after the closing delimiter line.
	_, rest, _ := bytes.Cut(source, []byte("---"))
	_, body, found := bytes.Cut(rest, []byte("\n---"))
	if !found {
		return nil, fmt.Errorf("unterminated frontmatter")
	}
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return bytes.TrimSpace(body), nil
}
