package blog

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	contentPolicy = bluemonday.UGCPolicy()
	textPolicy    = bluemonday.StrictPolicy()
)

// SanitizeContent keeps safe user-generated HTML in post bodies.
func SanitizeContent(s string) string {
	return strings.TrimSpace(contentPolicy.Sanitize(s))
}

// SanitizeText strips all markup from plain text fields such as titles, bios
// and comments. The result is unescaped; templates escape it on output.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
