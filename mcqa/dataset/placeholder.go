package dataset

import "strings"

// PlaceholderMarker marks the blank in a cloze question.
const PlaceholderMarker = "（）"

// ReplacePlaceholder fills every blank in question with option. The question
// is split on single spaces and rejoined the same way, so a question without
// the marker comes back unchanged.
func ReplacePlaceholder(question, option string) string {
	words := strings.Split(question, " ")
	for i, w := range words {
		if w == PlaceholderMarker {
			words[i] = option
		}
	}
	return strings.Join(words, " ")
}
