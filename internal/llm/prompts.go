package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxContentRunes bounds the document text embedded in a prompt.
const MaxContentRunes = 8000

const (
	DefaultMaxTokens   = 800
	DefaultTemperature = 1.0
)

const systemPrompt = "You are an AI assistant that writes YAML frontmatter for documentation pages. " +
	"Focus on a structured summary with a title, a description, a list of keywords and a short list of FAQs."

const summarySystemPrompt = "You are an AI assistant that helps people find information."

// outputContract is appended to every user prompt. The merger tolerates
// fences and delimiters, but the model is asked for the bare block.
const outputContract = "\nRespond with the YAML fields only: no code fence, no --- delimiters, no file header, no commentary.\n"

// PromptBuilder assembles the requests sent to the completion endpoint.
type PromptBuilder struct {
	MaxTokens   int
	Temperature float32
}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{MaxTokens: DefaultMaxTokens, Temperature: DefaultTemperature}
}

// BuildCreatePrompt asks for a new block for a page that has none.
func (pb *PromptBuilder) BuildCreatePrompt(content string, faqCount int) Request {
	var sb strings.Builder
	sb.WriteString("Generate frontmatter for the following documentation page in this format:\n\n")
	writeTemplate(&sb, faqCount, false)
	sb.WriteString(outputContract)
	sb.WriteString("\nContent:\n")
	sb.WriteString(Sanitize(content))
	return pb.request(sb.String())
}

// BuildEditPrompt asks for a minimally updated block for a page that
// already carries one.
func (pb *PromptBuilder) BuildEditPrompt(existing, content string, faqCount int) Request {
	var sb strings.Builder
	sb.WriteString("Review and make minimal necessary updates to the following metadata based on the content. ")
	sb.WriteString("Keep the same format and only change what needs to be updated. ")
	sb.WriteString("Keep any field that is not in the template, unchanged, after the template fields.\n\n")
	sb.WriteString("Expected format:\n\n")
	writeTemplate(&sb, faqCount, true)
	sb.WriteString(outputContract)
	sb.WriteString("\nCurrent metadata:\n")
	sb.WriteString(strings.TrimSpace(existing))
	sb.WriteString("\n\nContent to analyze:\n")
	sb.WriteString(Sanitize(content))
	return pb.request(sb.String())
}

// SummaryWords bounds the page summaries requested by BuildSummaryPrompt.
const SummaryWords = 100

// BuildSummaryPrompt asks for a bulleted summary of the published page at pageURL.
func (pb *PromptBuilder) BuildSummaryPrompt(pageURL string) Request {
	req := pb.request(fmt.Sprintf("%s Generate a summary in bulleted list form in %d words or less", pageURL, SummaryWords))
	req.System = summarySystemPrompt
	return req
}

func (pb *PromptBuilder) request(user string) Request {
	maxTokens := pb.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return Request{
		System:      systemPrompt,
		User:        user,
		MaxTokens:   maxTokens,
		Temperature: pb.Temperature,
	}
}

func writeTemplate(sb *strings.Builder, faqCount int, keepOthers bool) {
	sb.WriteString("title: [Same as the heading1 content]\n")
	sb.WriteString("description: [Brief description of the document]\n")
	sb.WriteString("keywords:\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(sb, "- [Keyword %d]\n", i)
	}
	sb.WriteString("faqs:\n")
	for i := 1; i <= faqCount; i++ {
		fmt.Fprintf(sb, "- question: [Question %d]\n  answer: [Answer %d]\n", i, i)
	}
	if keepOthers {
		sb.WriteString("other original metadata\n")
	}
	fmt.Fprintf(sb, "\nWrite exactly %d FAQs and at most 5 keywords.\n", faqCount)
}

// Sanitize trims content and cuts it to MaxContentRunes runes.
func Sanitize(content string) string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if utf8.RuneCountInString(content) <= MaxContentRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:MaxContentRunes])
}
