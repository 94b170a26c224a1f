package frontmatter

import (
	"regexp"
	"strings"
)

// Delimiter opens and closes a metadata block, alone on its line.
const Delimiter = "---"

const bom = "\ufeff"

var recognizedKey = regexp.MustCompile(`(?m)^\s*(title|description|keywords)\s*:`)

// Detection is the result of looking for a metadata block at the top of a document.
type Detection struct {
	Present bool
	// Block is the text strictly between the two delimiter lines.
	Block string
	// Body is the text after the closing delimiter line, without leading blank lines.
	// When no block is present it is the whole document.
	Body string
	// EndLine is the 1-indexed line of the closing delimiter, 0 when absent.
	EndLine int
	// CloseOffset is the byte offset just past the closing delimiter characters.
	CloseOffset int
}

type line struct {
	start int // offset of the first byte
	end   int // offset of the line terminator (or len(text))
	next  int // offset of the following line
}

func (l line) text(s string) string {
	return strings.TrimSuffix(s[l.start:l.end], "\r")
}

// Detect isolates the metadata block of raw, if it has one.
//
// A block is present only when the first line is a delimiter, a later line
// is a delimiter, and the enclosed region names at least one of title,
// description or keywords. Anything else, including an unterminated block
// or a horizontal-rule pair with no recognized keys, is treated as absent.
func Detect(raw string) Detection {
	absent := Detection{Body: raw}

	offset := 0
	text := raw
	if strings.HasPrefix(text, bom) {
		offset = len(bom)
		text = text[offset:]
	}

	lines := splitLines(text)
	if len(lines) < 2 || !isDelimiter(lines[0].text(text)) {
		return absent
	}

	closing := -1
	for i := 1; i < len(lines); i++ {
		if isDelimiter(lines[i].text(text)) {
			closing = i
			break
		}
	}
	if closing < 0 {
		return absent
	}

	block := text[lines[1].start:lines[closing].start]
	block = strings.TrimSuffix(block, "\n")
	block = strings.TrimSuffix(block, "\r")
	if !recognizedKey.MatchString(block) {
		return absent
	}

	return Detection{
		Present:     true,
		Block:       block,
		Body:        trimLeadingBlankLines(text[lines[closing].next:]),
		EndLine:     closing + 1,
		CloseOffset: offset + lines[closing].start + len(Delimiter),
	}
}

// FirstLine returns the first line of raw without its terminator.
func FirstLine(raw string) string {
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSuffix(raw, "\r")
}

func isDelimiter(s string) bool {
	return strings.TrimRight(s, " \t") == Delimiter
}

func splitLines(text string) []line {
	var lines []line
	pos := 0
	for pos < len(text) {
		i := strings.IndexByte(text[pos:], '\n')
		if i < 0 {
			lines = append(lines, line{start: pos, end: len(text), next: len(text)})
			break
		}
		lines = append(lines, line{start: pos, end: pos + i, next: pos + i + 1})
		pos += i + 1
	}
	return lines
}

func trimLeadingBlankLines(s string) string {
	for s != "" {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			if strings.TrimSpace(s) == "" {
				return ""
			}
			return s
		}
		if strings.TrimSpace(s[:i]) != "" {
			return s
		}
		s = s[i+1:]
	}
	return s
}
