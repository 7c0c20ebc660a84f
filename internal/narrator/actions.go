package narrator

import (
	"regexp"
	"strings"
)

// actionRegex matches *action*-style stage directions inside a reply.
var actionRegex = regexp.MustCompile(`\*[^*\n]+\*`)

var spaceRegex = regexp.MustCompile(`[ \t]+`)

// stripActions removes stage directions from a character reply, leaving
// dialogue only, and collapses the whitespace left behind.
func stripActions(text string) string {
	result := actionRegex.ReplaceAllString(text, "")
	result = spaceRegex.ReplaceAllString(result, " ")

	var lines []string
	for _, line := range strings.Split(result, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}
