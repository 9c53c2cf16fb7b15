package batch

import (
	"regexp"
	"strings"
)

// promptSeparator matches a line consisting solely of three or more
// dashes, optionally padded with spaces or tabs. Only such a line splits
// the input into multiple prompts; ordinary line breaks never do, so a
// legitimately multi-line prompt is not shredded into spurious tasks.
var promptSeparator = regexp.MustCompile(`(?m)^[ \t]*-{3,}[ \t]*\r?$`)

// ParsePrompts splits free-form input text into a list of prompts.
// Segments that are empty after trimming are dropped. Input with no
// separator line yields exactly one prompt equal to the trimmed input.
func ParsePrompts(text string) []string {
	parts := promptSeparator.Split(text, -1)
	prompts := make([]string, 0, len(parts))
	for _, part := range parts {
		if prompt := strings.TrimSpace(part); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return prompts
}
