package frontmatter

import (
	"fmt"
	"strings"
)

// Suggestion is a 1-indexed, inclusive line range of a document and the
// text that replaces it.
type Suggestion struct {
	StartLine   int
	EndLine     int
	Replacement string
}

// MultiLine reports whether the range spans more than one line.
func (s Suggestion) MultiLine() bool {
	return s.EndLine > s.StartLine
}

// Body renders the replacement as a review suggestion block.
func (s Suggestion) Body() string {
	return fmt.Sprintf("```suggestion\n%s\n```", s.Replacement)
}

// ResolveFullRewrite returns the document with block in place of its
// current metadata, or with block prepended when it has none.
//
// Everything after the closing delimiter characters is kept byte for byte,
// so rewriting with an unchanged block reproduces the original document.
// A leading byte order mark stays in front of the block.
func ResolveFullRewrite(raw, block string) string {
	prefix := ""
	if strings.HasPrefix(raw, bom) {
		prefix = bom
	}
	d := Detect(raw)
	if d.Present {
		return prefix + block + raw[d.CloseOffset:]
	}
	return prefix + block + "\n" + raw[len(prefix):]
}

// ResolveSuggestion returns the line range a review suggestion must replace.
//
// With metadata present the range runs from line 1 through the closing
// delimiter. Otherwise it covers line 1 only and the replacement carries
// the original first line after the block, because the suggestion replaces
// that line wholesale.
func ResolveSuggestion(raw, block string) Suggestion {
	d := Detect(raw)
	if d.Present && d.EndLine > 1 {
		return Suggestion{StartLine: 1, EndLine: d.EndLine, Replacement: block}
	}
	return Suggestion{
		StartLine:   1,
		EndLine:     1,
		Replacement: block + "\n" + FirstLine(raw),
	}
}
