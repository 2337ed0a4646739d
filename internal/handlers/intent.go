package handlers

import "strings"

// looksLikePromptList reports whether free text is a pasted prompt list
// rather than chatter.
func looksLikePromptList(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}

	if strings.HasPrefix(t, "[") || strings.HasPrefix(t, "```") {
		return true
	}

	lines := 0
	for _, line := range strings.Split(t, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	return lines >= 2
}
