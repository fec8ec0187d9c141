package translator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxRepeatedWord = 12
	maxRepeatedRune = 24
	// maxLengthRatio bounds output length relative to the source.
	maxLengthRatio = 8
	// lengthSlack lets short sources produce reasonably long output.
	lengthSlack = 40
)

// checkOutput rejects a batch whose count is wrong or whose entries look
// hallucinated.
func checkOutput(texts, translations []string) error {
	if len(texts) != len(translations) {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(translations), len(texts))
	}
	for i, out := range translations {
		if repetitive(out) {
			return fmt.Errorf("%w: entry %d", ErrRepetition, i)
		}
		in, got := utf8.RuneCountInString(texts[i]), utf8.RuneCountInString(out)
		if got > in*maxLengthRatio+lengthSlack {
			return fmt.Errorf("%w: entry %d is %d runes for a %d rune source", ErrRepetition, i, got, in)
		}
	}
	return nil
}

// repetitive reports whether s repeats one word, or for unspaced text one
// rune, more times in a row than a real line would.
func repetitive(s string) bool {
	if words := strings.Fields(s); len(words) > 1 {
		return longestRun(words) > maxRepeatedWord
	}
	return longestRun(strings.Split(s, "")) > maxRepeatedRune
}

func longestRun(tokens []string) int {
	longest, run := 0, 0
	for i, tok := range tokens {
		if i > 0 && tok == tokens[i-1] {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}
	return longest
}
