package complexity

import (
	"bufio"
	"strings"
	"unicode/utf8"
)

// Score is the coarse structural richness of a page.
type Score string

const (
	Low    Score = "low"
	Medium Score = "medium"
	High   Score = "high"
)

// Result pairs a score with the number of FAQs a page of that score should carry.
type Result struct {
	Score    Score
	FAQCount int
}

// Stats holds the raw measurements behind a Result.
type Stats struct {
	Length     int
	Headings   int
	CodeBlocks int
}

var faqCounts = map[Score]int{
	Low:    2,
	Medium: 3,
	High:   5,
}

// FAQCount returns the FAQ target for a score. Unknown scores map to the low target.
func (s Score) FAQCount() int {
	if n, ok := faqCounts[s]; ok {
		return n
	}
	return faqCounts[Low]
}

// Classify scores a page body by length, heading count and fenced code blocks.
func Classify(body string) Result {
	st := Measure(body)

	total := lengthScore(st.Length) + headingScore(st.Headings) + codeScore(st.CodeBlocks)
	score := Low
	switch {
	case total >= 3:
		score = High
	case total >= 1:
		score = Medium
	}
	return Result{Score: score, FAQCount: score.FAQCount()}
}

// Measure counts characters, heading lines and paired ``` fences.
// Heading lines are counted line by line, including those inside code fences.
func Measure(body string) Stats {
	st := Stats{Length: utf8.RuneCountInString(body)}
	if body == "" {
		return st
	}

	fences := 0
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if isHeading(line) {
			st.Headings++
		}
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fences++
		}
	}
	st.CodeBlocks = fences / 2
	return st
}

func isHeading(line string) bool {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level == len(line) {
		return false
	}
	return line[level] == ' ' || line[level] == '\t'
}

func lengthScore(n int) int {
	switch {
	case n > 2000:
		return 2
	case n > 800:
		return 1
	}
	return 0
}

func headingScore(n int) int {
	switch {
	case n > 6:
		return 2
	case n > 2:
		return 1
	}
	return 0
}

func codeScore(n int) int {
	switch {
	case n > 2:
		return 2
	case n > 0:
		return 1
	}
	return 0
}
