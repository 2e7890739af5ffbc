package chunk

import "strings"

// Tokenizer converts text to a token sequence and back. The token-budget
// chunker slices token windows and decodes them, so Decode(Encode(s))
// must reproduce s exactly.
type Tokenizer interface {
	Encode(text string) []string
	Decode(tokens []string) string
}

// WordTokenizer is a lossless heuristic tokenizer: each token is a run of
// non-whitespace characters with its trailing whitespace attached. It
// approximates subword tokenizers closely enough for budget estimation
// while keeping chunk boundaries word-aligned.
type WordTokenizer struct{}

// Encode splits text into whitespace-attached word tokens.
func (WordTokenizer) Encode(text string) []string {
	if text == "" {
		return nil
	}
	var tokens []string
	start := 0
	inSpace := isSpaceByte(text[0])
	for i := 1; i < len(text); i++ {
		sp := isSpaceByte(text[i])
		// A token ends where whitespace transitions back to a word.
		if inSpace && !sp {
			tokens = append(tokens, text[start:i])
			start = i
		}
		inSpace = sp
	}
	tokens = append(tokens, text[start:])
	return tokens
}

// Decode reverses Encode by concatenation.
func (WordTokenizer) Decode(tokens []string) string {
	return strings.Join(tokens, "")
}

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
