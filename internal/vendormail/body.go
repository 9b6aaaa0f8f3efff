package vendormail

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlMarkerRe = regexp.MustCompile(`(?i)<(?:html|body|br|p|div|table|tr|td|span|strong|b)\b[^>]*>`)
	blockTagRe   = regexp.MustCompile(`(?i)<\s*(?:br|/p|/div|/tr|/li|/h[1-6]|/table)\s*/?>`)
	cellTagRe    = regexp.MustCompile(`(?i)<\s*/t[dh]\s*>`)
	spaceRunRe   = regexp.MustCompile(`[ \t\x{00a0}]+`)

	textPolicy = bluemonday.StrictPolicy()
)

// LooksLikeHTML reports whether body carries HTML markup worth stripping.
func LooksLikeHTML(body string) bool {
	return htmlMarkerRe.MatchString(body)
}

// NormalizeBody returns the notification body as plain text lines. HTML bodies
// are reduced to their text so "Label: value" lines survive table layouts.
func NormalizeBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	if LooksLikeHTML(body) {
		body = HTMLToText(body)
	}
	return strings.TrimSpace(body)
}

func HTMLToText(markup string) string {
	markup = blockTagRe.ReplaceAllString(markup, "\n")
	markup = cellTagRe.ReplaceAllString(markup, " ")
	text := html.UnescapeString(textPolicy.Sanitize(markup))

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
