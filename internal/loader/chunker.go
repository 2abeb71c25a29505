package loader

import (
	"iter"
	"strings"
)

const DefaultChunkWords = 500

// Chunks lazily yields windows of up to maxWords whitespace-separated words,
// joined by single spaces. Windows do not overlap; the last may be shorter.
func Chunks(text string, maxWords int) iter.Seq[string] {
	if maxWords <= 0 {
		maxWords = DefaultChunkWords
	}
	return func(yield func(string) bool) {
		words := strings.Fields(text)
		for start := 0; start < len(words); start += maxWords {
			end := min(start+maxWords, len(words))
			if !yield(strings.Join(words[start:end], " ")) {
				return
			}
		}
	}
}
