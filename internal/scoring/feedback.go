package scoring

import "strings"

// splitFeedback turns a reviewer's free-text feedback into at most max
// distinct items by splitting on sentence boundaries. Splitting the same
// text twice yields the same items.
func splitFeedback(text string, max int) []string {
	items := []string{}
	if max <= 0 {
		return items
	}

	for _, raw := range strings.FieldsFunc(text, isSentenceBoundary) {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		items = append(items, item)
		if len(items) == max {
			break
		}
	}
	return items
}

func isSentenceBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n':
		return true
	}
	return false
}
