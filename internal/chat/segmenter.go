package chat

import "strings"

const sentenceTerminators = ".!?"

// Segmenter finds completed sentences in a growing message and reports each
// one once. Scan re-reads the message from the start, so a call costs
// O(len(text)); fine for chat-sized messages.
type Segmenter struct {
	seen  map[string]struct{}
	order []string
}

func NewSegmenter() *Segmenter {
	return &Segmenter{seen: make(map[string]struct{})}
}

// Scan returns the sentences of text not reported before, in order. A
// sentence is a run of non-terminators followed by one or more of ".!?",
// trimmed of surrounding whitespace. Trailing text with no terminator is left
// for a later call.
func (s *Segmenter) Scan(text string) []string {
	var fresh []string
	for _, sentence := range splitSentences(text) {
		if _, ok := s.seen[sentence]; ok {
			continue
		}
		s.seen[sentence] = struct{}{}
		s.order = append(s.order, sentence)
		fresh = append(fresh, sentence)
	}
	return fresh
}

// Seen returns every sentence reported so far, in report order.
func (s *Segmenter) Seen() []string {
	return append([]string(nil), s.order...)
}

func splitSentences(text string) []string {
	var out []string
	for start := 0; start < len(text); {
		end := strings.IndexAny(text[start:], sentenceTerminators)
		if end < 0 {
			break
		}
		end += start
		for end < len(text) && strings.IndexByte(sentenceTerminators, text[end]) >= 0 {
			end++
		}
		if sentence := strings.TrimSpace(text[start:end]); sentence != "" {
			out = append(out, sentence)
		}
		start = end
	}
	return out
}
