package frontmatter

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recognized metadata fields, in the order they are emitted when new.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldKeywords    = "keywords"
	FieldFAQs        = "faqs"
)

// MaxKeywords caps the keywords sequence.
const MaxKeywords = 5

var recognizedFields = []string{FieldTitle, FieldDescription, FieldKeywords, FieldFAQs}

// ErrNoFields means a completion held no recognized metadata field.
var ErrNoFields = errors.New("frontmatter: completion has no metadata fields")

var (
	echoedHeader = regexp.MustCompile(`^\s*--- File: .* ---\s*$`)
	topLevelKey  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.-]*)\s*:(\s|$)`)
)

// field is one top-level entry of a metadata block. text holds the source
// lines verbatim so that passthrough entries survive a merge untouched.
type field struct {
	key   string
	text  string
	value *yaml.Node // nil when the block was not valid YAML
}

func (f field) empty() bool {
	if f.value != nil {
		switch f.value.Kind {
		case yaml.ScalarNode:
			return strings.TrimSpace(f.value.Value) == ""
		case yaml.SequenceNode, yaml.MappingNode:
			return len(f.value.Content) == 0
		}
		return false
	}

	lines := strings.Split(f.text, "\n")
	_, rest, _ := strings.Cut(lines[0], ":")
	switch strings.TrimSpace(rest) {
	case "", `""`, "''", "~", "null":
	default:
		return false
	}
	for _, ln := range lines[1:] {
		if strings.TrimSpace(ln) != "" {
			return false
		}
	}
	return true
}

// Merge produces the final metadata block for a document.
//
// existing is the current block content without delimiters ("" when the
// document has none), generated is the completion text, and h1 is the
// document's first level-1 heading ("" when absent). Recognized fields take
// the generated value when it is defined and non-empty, otherwise the
// existing one, and keep the position they had in existing. Recognized
// fields new to the block follow in canonical order, then unrecognized
// existing fields verbatim in their original order, then generated-only
// unrecognized fields. No key is emitted twice. When no title survives, h1
// is inserted as the first field.
//
// Merge is total: text that yields no fields is passed through delimited.
func Merge(existing, generated, h1 string) string {
	block, _ := merge(existing, generated, h1)
	return block
}

// MergeFields is Merge for callers that publish the block. When generated
// holds no recognized field it returns the best-effort block with
// ErrNoFields.
func MergeFields(existing, generated, h1 string) (string, error) {
	block, ok := merge(existing, generated, h1)
	if !ok {
		return block, ErrNoFields
	}
	return block, nil
}

func merge(existing, generated, h1 string) (string, bool) {
	candidateText := NormalizeCandidate(generated)
	candidate := parseFields(candidateText)
	current := parseFields(existing)

	if len(candidate) == 0 {
		if candidateText == "" && len(current) > 0 {
			return Wrap(normalizeNewlines(existing)), false
		}
		return Wrap(candidateText), false
	}
	ok := false
	for _, f := range candidate {
		if isRecognized(f.key) {
			ok = true
			break
		}
	}

	out := candidate
	if len(current) > 0 {
		out = reconcile(current, candidate)
	}
	out = capKeywords(out)
	out = backfillTitle(out, h1)
	return render(out), ok
}

// NormalizeCandidate strips the framing a completion may wrap around a
// block: a markdown code fence, echoed "--- File: <path> ---" headers,
// the block delimiters and anything after the closing one, and a common
// indentation.
func NormalizeCandidate(s string) string {
	s = strings.TrimSpace(normalizeNewlines(s))
	s = stripCodeFence(s)

	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		if echoedHeader.MatchString(ln) {
			continue
		}
		lines = append(lines, ln)
	}

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start < len(lines) && strings.TrimSpace(lines[start]) == Delimiter {
		start++
	}
	lines = lines[start:]
	for i, ln := range lines {
		if strings.TrimSpace(ln) == Delimiter {
			lines = lines[:i]
			break
		}
	}

	return strings.TrimSpace(dedent(lines))
}

// Wrap encloses block content in delimiter lines.
func Wrap(content string) string {
	content = strings.Trim(content, "\n")
	if content == "" {
		return Delimiter + "\n" + Delimiter
	}
	return Delimiter + "\n" + content + "\n" + Delimiter
}

func reconcile(current, candidate []field) []field {
	cand := indexFields(candidate)
	cur := indexFields(current)

	out := make([]field, 0, len(current)+len(candidate))
	for _, f := range current {
		if !isRecognized(f.key) {
			continue
		}
		if c, ok := cand[f.key]; ok && !c.empty() {
			f = c
		}
		out = append(out, f)
	}
	for _, key := range recognizedFields {
		if _, ok := cur[key]; ok {
			continue
		}
		if f, ok := cand[key]; ok {
			out = append(out, f)
		}
	}
	for _, f := range current {
		if !isRecognized(f.key) {
			out = append(out, f)
		}
	}
	for _, f := range candidate {
		if _, seen := cur[f.key]; !seen && !isRecognized(f.key) {
			out = append(out, f)
		}
	}
	return out
}

func capKeywords(fields []field) []field {
	for i, f := range fields {
		if f.key != FieldKeywords {
			continue
		}
		if f.value != nil {
			if f.value.Kind == yaml.SequenceNode && len(f.value.Content) > MaxKeywords {
				trimmed := *f.value
				trimmed.Content = f.value.Content[:MaxKeywords]
				fields[i].value = &trimmed
				fields[i].text = encodeField(f.key, &trimmed)
			}
			continue
		}

		lines := strings.Split(f.text, "\n")
		kept := []string{lines[0]}
		items := 0
		for _, ln := range lines[1:] {
			if strings.HasPrefix(strings.TrimSpace(ln), "- ") {
				items++
				if items > MaxKeywords {
					continue
				}
			}
			kept = append(kept, ln)
		}
		fields[i].text = strings.Join(kept, "\n")
	}
	return fields
}

func backfillTitle(fields []field, h1 string) []field {
	h1 = strings.TrimSpace(h1)
	idx := -1
	for i, f := range fields {
		if f.key == FieldTitle {
			if !f.empty() {
				return fields
			}
			idx = i
			break
		}
	}
	if h1 == "" {
		return fields
	}

	value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: h1}
	title := field{key: FieldTitle, text: encodeField(FieldTitle, value), value: value}

	out := make([]field, 0, len(fields)+1)
	out = append(out, title)
	for i, f := range fields {
		if i != idx {
			out = append(out, f)
		}
	}
	return out
}

func render(fields []field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.text)
	}
	return Wrap(strings.Join(parts, "\n"))
}

// parseFields splits block content into top-level fields. Valid YAML is
// split on the key positions reported by the parser; anything else falls
// back to a line scanner over column-zero keys. Duplicate keys keep the
// first occurrence.
func parseFields(block string) []field {
	block = normalizeNewlines(block)
	if strings.TrimSpace(block) == "" {
		return nil
	}
	fields, ok := parseYAMLFields(block)
	if !ok {
		fields = scanFields(block)
	}
	return dedupe(fields)
}

func parseYAMLFields(block string) ([]field, bool) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, false
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, false
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode || m.Style&yaml.FlowStyle != 0 {
		return nil, false
	}

	lines := strings.Split(block, "\n")
	fields := make([]field, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, false
		}
		start := k.Line - 1
		end := len(lines)
		if i+2 < len(m.Content) {
			end = m.Content[i+2].Line - 1
		}
		if start < 0 || start >= end || end > len(lines) {
			return nil, false
		}
		fields = append(fields, field{
			key:   k.Value,
			text:  trimTrailingBlankLines(strings.Join(lines[start:end], "\n")),
			value: v,
		})
	}
	return fields, true
}

func scanFields(block string) []field {
	var fields []field
	var key string
	var buf []string

	flush := func() {
		if key != "" {
			fields = append(fields, field{key: key, text: trimTrailingBlankLines(strings.Join(buf, "\n"))})
		}
	}
	for _, ln := range strings.Split(block, "\n") {
		if m := topLevelKey.FindStringSubmatch(ln); m != nil {
			flush()
			key = m[1]
			buf = []string{ln}
			continue
		}
		if key != "" {
			buf = append(buf, ln)
		}
	}
	flush()
	return fields
}

func encodeField(key string, value *yaml.Node) string {
	m := &yaml.Node{
		Kind:    yaml.MappingNode,
		Content: []*yaml.Node{{Kind: yaml.ScalarNode, Value: key}, value},
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return key + ": " + value.Value
	}
	_ = enc.Close()
	return strings.TrimRight(buf.String(), "\n")
}

func dedupe(fields []field) []field {
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if seen[f.key] {
			continue
		}
		seen[f.key] = true
		out = append(out, f)
	}
	return out
}

func indexFields(fields []field) map[string]field {
	m := make(map[string]field, len(fields))
	for _, f := range fields {
		m[f.key] = f
	}
	return m
}

func isRecognized(key string) bool {
	for _, k := range recognizedFields {
		if k == key {
			return true
		}
	}
	return false
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimRight(s, " \t\n")
	return strings.TrimSuffix(s, "```")
}

func dedent(lines []string) string {
	indent := -1
	for _, ln := range lines {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		n := len(ln) - len(strings.TrimLeft(ln, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return strings.Join(lines, "\n")
	}
	out := make([]string, len(lines))
	for i, ln := range lines {
		if len(ln) >= indent && strings.TrimSpace(ln[:indent]) == "" {
			out[i] = ln[indent:]
		} else {
			out[i] = strings.TrimLeft(ln, " \t")
		}
	}
	return strings.Join(out, "\n")
}

func trimTrailingBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
