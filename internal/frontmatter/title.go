package frontmatter

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// H1Title returns the text of the first level-1 heading in a markdown body,
// or "" when there is none. Headings inside code blocks are not considered.
func H1Title(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	source := []byte(body)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			title = strings.TrimSpace(string(h.Text(source)))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}
