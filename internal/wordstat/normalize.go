package wordstat

import "strings"

// SplitPhrases turns free-form text into an ordered list of phrases.
// Input is split on newlines, then commas; tokens are trimmed and empty
// tokens dropped. Order is preserved and duplicates are kept.
func SplitPhrases(raw string) []string {
	var phrases []string
	for _, line := range strings.Split(raw, "\n") {
		for _, token := range strings.Split(line, ",") {
			cleaned := strings.TrimSpace(token)
			if cleaned == "" {
				continue
			}
			phrases = append(phrases, cleaned)
		}
	}
	return phrases
}
