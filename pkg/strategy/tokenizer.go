package strategy

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into case-folded words delimited by whitespace
// and punctuation. Duplicates are kept so repeated words carry repeated
// weight during training.
type Tokenizer struct {
	MinLength int
	MaxLength int
}

// DefaultTokenizer returns the token length bounds used when an analyzer
// config does not override them.
func DefaultTokenizer() Tokenizer {
	return Tokenizer{
		MinLength: 3,
		MaxLength: 32,
	}
}

// Tokenize returns the trainable tokens of text.
func (t Tokenizer) Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := fields[:0]
	for _, field := range fields {
		n := len([]rune(field))
		if n < t.MinLength || (t.MaxLength > 0 && n > t.MaxLength) {
			continue
		}
		tokens = append(tokens, field)
	}

	return tokens
}
