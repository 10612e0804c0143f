package process

import (
	"regexp"
	"strings"
)

var (
	urlRe     = regexp.MustCompile(`(?:https?://|www\.)\S+`)
	mentionRe = regexp.MustCompile(`@\w+`)
	hashtagRe = regexp.MustCompile(`#(\w+)`)
)

// CleanText normalizes post text for analysis: URLs collapse to a
// [LINK] placeholder, mentions to [MENTION], hashtags keep their word
// without the marker, and whitespace is flattened.
func CleanText(text string) string {
	text = urlRe.ReplaceAllString(text, "[LINK]")
	text = mentionRe.ReplaceAllString(text, "[MENTION]")
	text = hashtagRe.ReplaceAllString(text, "$1")
	return strings.Join(strings.Fields(text), " ")
}
