package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeString trims input, drops null bytes and caps it at maxRunes.
func SanitizeString(input string, maxRunes int) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	if maxRunes > 0 && utf8.RuneCountInString(input) > maxRunes {
		input = string([]rune(input)[:maxRunes])
	}

	return input
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// CleanText is used for admin-entered labels shown to users: markup is
// stripped before the length cap.
func CleanText(input string, maxRunes int) string {
	return SanitizeString(SanitizeHTML(input), maxRunes)
}
