package textutil

import "strings"

// DefaultSnippetLimit bounds payload excerpts embedded in error messages.
const DefaultSnippetLimit = 160

var snippetReplacer = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")

// Snippet collapses whitespace and truncates content to limit runes so it can
// be embedded in a single log line or error message.
func Snippet(content string, limit int) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	if limit <= 0 {
		limit = DefaultSnippetLimit
	}
	clean := snippetReplacer.Replace(trimmed)
	clean = strings.Join(strings.Fields(clean), " ")
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
