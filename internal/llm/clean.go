package llm

import "strings"

// cleanOutput drops a markdown or yaml code fence wrapped around the whole reply.
func cleanOutput(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```yaml", "```yml", "```markdown", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			text = strings.TrimSuffix(strings.TrimSpace(text), "```")
			break
		}
	}
	return strings.TrimSpace(text)
}
