// Package batch reads and writes the working file passed between pipeline
// stages: a concatenation of "--- File: <path> ---" sections.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ErrEmptyBatch means no document survived filtering. It is a normal
// terminal state: publish stages stop without touching the remote.
var ErrEmptyBatch = errors.New("batch: no documents to process")

var marker = regexp.MustCompile(`^--- File: (.+?) ---\s*$`)

// Section is one document of a batch.
type Section struct {
	Path    string
	Content string
}

// Batch is an ordered list of sections.
type Batch []Section

// Paths returns the section paths in order.
func (b Batch) Paths() []string {
	paths := make([]string, 0, len(b))
	for _, s := range b {
		paths = append(paths, s.Path)
	}
	return paths
}

// RequireNonEmpty returns ErrEmptyBatch when b has no sections.
func (b Batch) RequireNonEmpty() error {
	if len(b) == 0 {
		return ErrEmptyBatch
	}
	return nil
}

// Marker returns the header line that opens a section for path.
func Marker(path string) string {
	return fmt.Sprintf("--- File: %s ---", path)
}

// Parse tokenizes batch text into sections.
//
// A section starts at a marker line and runs to the next marker line or EOF.
// Text before the first marker is ignored, as are markers with an empty
// path. Section content is stripped of surrounding blank lines.
func Parse(r io.Reader) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return ParseString(string(data)), nil
}

// ParseString is Parse over an in-memory string.
func ParseString(text string) Batch {
	var b Batch
	var current *Section
	var buf []string

	flush := func() {
		if current != nil {
			current.Content = trimBlankLines(strings.Join(buf, "\n"))
			b = append(b, *current)
		}
	}

	for _, ln := range strings.Split(text, "\n") {
		m := marker.FindStringSubmatch(strings.TrimSuffix(ln, "\r"))
		if m != nil && strings.TrimSpace(m[1]) != "" {
			flush()
			current = &Section{Path: strings.TrimSpace(m[1])}
			buf = buf[:0]
			continue
		}
		if current != nil {
			buf = append(buf, ln)
		}
	}
	flush()
	return b
}

// Encode writes b in the working-file format.
func (b Batch) Encode(w io.Writer) error {
	for _, s := range b {
		if _, err := fmt.Fprintf(w, "\n\n%s\n\n%s", Marker(s.Path), s.Content); err != nil {
			return err
		}
	}
	return nil
}

// String returns the encoded batch.
func (b Batch) String() string {
	var buf bytes.Buffer
	_ = b.Encode(&buf)
	return buf.String()
}

// ReadFile parses the batch stored at path.
func ReadFile(path string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// WriteFile stores b at path. An empty batch is written as notice so that
// a reader of the working file sees why it holds no sections.
func WriteFile(path string, b Batch, notice string) error {
	data := b.String()
	if len(b) == 0 {
		data = notice
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write batch %s: %w", path, err)
	}
	return nil
}

func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
