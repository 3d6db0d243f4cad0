package sanitize

import "regexp"

// Patterns for HTML defanging. This is defense in depth for rendered overlay
// content, not a full HTML sanitizer; output encoding at the rendering layer
// remains the primary XSS defense.
var (
	scriptBlockRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptOpenRe   = regexp.MustCompile(`(?i)<script\b[^>]*>`)
	eventAttrRe    = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsSchemeRe     = regexp.MustCompile(`(?i)javascript\s*:`)
	dataSchemeRe   = regexp.MustCompile(`(?i)data\s*:`)
	cssExpressionRe = regexp.MustCompile(`(?i)expression\s*\(`)
)

// HTML strips script blocks, inline event handlers, javascript:/data: URL
// schemes and CSS expression() from the given markup.
func HTML(html string) string {
	html = scriptBlockRe.ReplaceAllString(html, "")
	html = scriptOpenRe.ReplaceAllString(html, "")
	html = eventAttrRe.ReplaceAllString(html, "")
	html = jsSchemeRe.ReplaceAllString(html, "")
	html = dataSchemeRe.ReplaceAllString(html, "")
	html = cssExpressionRe.ReplaceAllString(html, "")
	return html
}
