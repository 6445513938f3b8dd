// Package sanitize strips markup and script vectors from user input before
// it is validated, stored or logged.
package sanitize

import (
	"regexp"
	"strings"
)

// rules run in order. Each removes at least one character per match, so
// repeating the pass terminates.
var rules = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script\b.*?</script\s*>`),
	regexp.MustCompile(`<[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)<script`),
}

// String removes script blocks, markup tags, javascript: URLs and inline
// event handlers from s and trims surrounding whitespace. The rules are
// reapplied until nothing changes, so String(String(s)) == String(s) and the
// result never contains "<script" in any case.
func String(s string) string {
	for {
		out := s
		for _, re := range rules {
			out = re.ReplaceAllString(out, "")
		}
		out = strings.TrimSpace(out)
		if out == s {
			return out
		}
		s = out
	}
}

// Value sanitizes v when it is a string and returns every other value
// unchanged.
func Value(v any) any {
	if s, ok := v.(string); ok {
		return String(s)
	}
	return v
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes the five HTML-significant characters.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
