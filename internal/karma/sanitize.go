package karma

import "regexp"

var (
	codeBlockRe = regexp.MustCompile("(?s)```.+?```")
	preBlockRe  = regexp.MustCompile("`.+?`")
)

// Sanitize removes code-fenced and backtick-quoted spans so karma
// inside code never matches. Fenced blocks are stripped first
// (non-greedy, across newlines), then inline backtick spans.
// An unterminated fence has no closing delimiter and is left as-is.
func Sanitize(text string) string {
	text = codeBlockRe.ReplaceAllString(text, "")
	return preBlockRe.ReplaceAllString(text, "")
}
