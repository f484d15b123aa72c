package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery trims a user-entered reference, collapses internal
// whitespace, and converts it to NFC so visually identical input produces the
// same request path.
func NormalizeQuery(query string) string {
	query = norm.NFC.String(query)
	return strings.Join(strings.Fields(query), " ")
}

// NormalizeVerseText converts verse text to NFC and trims surrounding
// whitespace. Internal line breaks are kept; poetic passages depend on them.
func NormalizeVerseText(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// TitleQuery title-cases book names for display ("1 john 1:9" -> "1 John 1:9").
func TitleQuery(query string) string {
	query = NormalizeQuery(query)
	if query == "" {
		return ""
	}
	return cases.Title(language.English, cases.NoLower).String(query)
}
