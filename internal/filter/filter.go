// Package filter implements the blocked-word check applied to every chat
// message before anything else sees it.
package filter

import "strings"

// WordFilter matches messages against a configured word list. A hit answers
// with the configured reply and stops further processing of that message.
type WordFilter struct {
	words []string
	reply string
}

func New(words []string, reply string) *WordFilter {
	clean := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			clean = append(clean, w)
		}
	}
	return &WordFilter{words: clean, reply: reply}
}

// Check reports whether content contains a blocked word, and the reply to
// send when it does. Matching is case-insensitive substring containment,
// mirroring the original behavior.
func (f *WordFilter) Check(content string) (string, bool) {
	if f == nil || len(f.words) == 0 {
		return "", false
	}
	lower := strings.ToLower(content)
	for _, w := range f.words {
		if strings.Contains(lower, w) {
			return f.reply, true
		}
	}
	return "", false
}
