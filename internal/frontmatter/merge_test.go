package frontmatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// keysOf parses a delimited block and returns its top-level keys in order.
func keysOf(t *testing.T, block string) []string {
	t.Helper()
	require.True(t, strings.HasPrefix(block, "---\n"), "block must open with a delimiter: %q", block)
	require.True(t, strings.HasSuffix(block, "\n---"), "block must close with a delimiter: %q", block)

	inner := strings.TrimSuffix(strings.TrimPrefix(block, "---\n"), "\n---")
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(inner), &doc))
	require.Equal(t, yaml.DocumentNode, doc.Kind)
	m := doc.Content[0]
	require.Equal(t, yaml.MappingNode, m.Kind)

	var keys []string
	for i := 0; i < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

func valueOf(t *testing.T, block, key string) *yaml.Node {
	t.Helper()
	inner := strings.TrimSuffix(strings.TrimPrefix(block, "---\n"), "\n---")
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(inner), &doc))
	m := doc.Content[0]
	for i := 0; i < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func TestMerge_NoExistingBackfillsTitle(t *testing.T) {
	body := "# Title\n\nSome text"
	out := Merge("", "description: A page\nkeywords:\n- a\n- b", H1Title(body))

	assert.Equal(t, []string{"title", "description", "keywords"}, keysOf(t, out))
	assert.True(t, strings.HasPrefix(out, "---\ntitle: Title\n"))
}

func TestMerge_ExistingWithCustomField(t *testing.T) {
	existing := "title: Old\ndescription: D\ncustomField: X"
	generated := "title: New\ndescription: D2\nkeywords:\n- a\n- b"

	out := Merge(existing, generated, "")

	assert.Equal(t, []string{"title", "description", "keywords", "customField"}, keysOf(t, out))
	assert.Equal(t, "New", valueOf(t, out, "title").Value)
	assert.Equal(t, "D2", valueOf(t, out, "description").Value)

	kw := valueOf(t, out, "keywords")
	require.Equal(t, yaml.SequenceNode, kw.Kind)
	require.Len(t, kw.Content, 2)
	assert.Equal(t, "a", kw.Content[0].Value)
	assert.Equal(t, "b", kw.Content[1].Value)

	assert.Equal(t, 1, strings.Count(out, "customField: X"))
}

func TestMerge_NeverDuplicatesKeys(t *testing.T) {
	existing := "title: Old\nlayout: docs\ncustomField: X\nkeywords:\n- k"
	generated := "title: New\nlayout: wide\ncustomField: Y\nkeywords:\n- n\ntitle: Again"

	out := Merge(existing, generated, "Heading")
	keys := keysOf(t, out)

	seen := map[string]int{}
	for _, k := range keys {
		seen[k]++
	}
	for k, n := range seen {
		assert.Equal(t, 1, n, "key %q emitted %d times", k, n)
	}
	assert.Equal(t, "docs", valueOf(t, out, "layout").Value)
	assert.Equal(t, "X", valueOf(t, out, "customField").Value)
	assert.Equal(t, "New", valueOf(t, out, "title").Value)
}

func TestMerge_PreservesPassthroughVerbatim(t *testing.T) {
	existing := "title: Old\n" +
		"contributors:\n" +
		"  - https://github.com/someone   # lead\n" +
		"  - https://github.com/other\n" +
		"edition: 'ee'\n" +
		"description: Old desc"
	out := Merge(existing, "title: New\ndescription: New desc", "")

	assert.Contains(t, out, "contributors:\n  - https://github.com/someone   # lead\n  - https://github.com/other\nedition: 'ee'")
	assert.Equal(t, []string{"title", "description", "contributors", "edition"}, keysOf(t, out))
}

func TestMerge_FallsBackToExistingRecognizedFields(t *testing.T) {
	existing := "title: Kept\ndescription: Kept desc\nfaqs:\n- question: Q?\n  answer: A."
	out := Merge(existing, "keywords:\n- one", "")

	assert.Equal(t, []string{"title", "description", "faqs", "keywords"}, keysOf(t, out))
	assert.Equal(t, "Kept", valueOf(t, out, "title").Value)
	faqs := valueOf(t, out, "faqs")
	require.Len(t, faqs.Content, 1)
}

func TestMerge_EmptyCandidateTitleKeepsExisting(t *testing.T) {
	out := Merge("title: Existing\ndescription: D", "title:\ndescription: D2", "H1")
	assert.Equal(t, "Existing", valueOf(t, out, "title").Value)
}

func TestMerge_EmptyTitleReplacedByHeading(t *testing.T) {
	out := Merge("", `title: ""`+"\ndescription: D", "Heading: With Colon")

	assert.Equal(t, []string{"title", "description"}, keysOf(t, out))
	assert.Equal(t, "Heading: With Colon", valueOf(t, out, "title").Value)
}

func TestMerge_NoHeadingLeavesTitleAbsent(t *testing.T) {
	out := Merge("", "description: D", "")
	assert.Equal(t, []string{"description"}, keysOf(t, out))
}

func TestMerge_StripsFramingFromCompletion(t *testing.T) {
	generated := "```yaml\n--- File: src/pages/index.md ---\n---\ntitle: T\ndescription: D\n---\n# Echoed body\n```"
	out := Merge("", generated, "")

	assert.Equal(t, "---\ntitle: T\ndescription: D\n---", out)
}

func TestMerge_DedentsIndentedCompletion(t *testing.T) {
	generated := "    ---\n    title: T\n    keywords:\n    - a\n    ---"
	out := Merge("", generated, "")

	assert.Equal(t, "---\ntitle: T\nkeywords:\n- a\n---", out)
}

func TestMerge_CapsKeywords(t *testing.T) {
	generated := "title: T\nkeywords:\n- a\n- b\n- c\n- d\n- e\n- f\n- g"
	out := Merge("", generated, "")

	kw := valueOf(t, out, "keywords")
	require.NotNil(t, kw)
	assert.Len(t, kw.Content, MaxKeywords)
	assert.NotContains(t, out, "- f")
}

func TestMerge_UnparsableCandidatePassesThrough(t *testing.T) {
	out := Merge("title: Old", "I cannot help with that.", "Heading")
	assert.Equal(t, "---\nI cannot help with that.\n---", out)
}

func TestMerge_EmptyCandidateKeepsExisting(t *testing.T) {
	out := Merge("title: Old\ncustom: 1", "   ", "")
	assert.Equal(t, "---\ntitle: Old\ncustom: 1\n---", out)
}

func TestMerge_InvalidYAMLUsesLineScanner(t *testing.T) {
	generated := "title: Setup: the basics\ndescription: Learn: how it works\nkeywords:\n- a"
	out := Merge("title: Old\nversion: 2", generated, "")

	assert.Contains(t, out, "title: Setup: the basics")
	assert.Contains(t, out, "description: Learn: how it works")
	assert.Equal(t, 1, strings.Count(out, "version: 2"))
	assert.True(t, strings.HasSuffix(out, "version: 2\n---"))
}

func TestMerge_KeepsExistingFieldOrder(t *testing.T) {
	existing := "description: D\ntitle: T\nlayout: x"

	out := Merge(existing, existing, "T")
	assert.Equal(t, "---\n"+existing+"\n---", out)

	out = Merge(existing, "title: New\nkeywords:\n- k\ndescription: D2", "")
	assert.Equal(t, []string{"description", "title", "keywords", "layout"}, keysOf(t, out))
	assert.Equal(t, "New", valueOf(t, out, "title").Value)
	assert.Equal(t, "D2", valueOf(t, out, "description").Value)
}

func TestMergeFields(t *testing.T) {
	block, err := MergeFields("title: Real\ndescription: Keep me", "I'm sorry, I cannot help with that.", "Real")
	assert.ErrorIs(t, err, ErrNoFields)
	assert.Equal(t, "---\nI'm sorry, I cannot help with that.\n---", block)

	_, err = MergeFields("title: Real", "Note: nothing to add", "Real")
	assert.ErrorIs(t, err, ErrNoFields)

	_, err = MergeFields("title: Real", "   ", "Real")
	assert.ErrorIs(t, err, ErrNoFields)

	block, err = MergeFields("title: Real\nlayout: docs", "description: New", "Real")
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Real\ndescription: New\nlayout: docs\n---", block)
}

func TestMerge_CandidateOnlyPassthroughAppended(t *testing.T) {
	out := Merge("title: Old\nlayout: a", "title: New\nnew_field: z", "")
	assert.Equal(t, []string{"title", "layout", "new_field"}, keysOf(t, out))
}

func TestNormalizeCandidate(t *testing.T) {
	assert.Equal(t, "title: T", NormalizeCandidate("---\ntitle: T\n---"))
	assert.Equal(t, "title: T", NormalizeCandidate("title: T\n---"))
	assert.Equal(t, "title: T", NormalizeCandidate("--- File: a.md ---\ntitle: T"))
	assert.Equal(t, "", NormalizeCandidate(""))
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "---\n---", Wrap(""))
	assert.Equal(t, "---\na: 1\n---", Wrap("\na: 1\n"))
}
