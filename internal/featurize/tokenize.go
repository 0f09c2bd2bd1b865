package featurize

import (
	"unicode"
	"unicode/utf8"
)

// tokenize splits source text into identifier, number, string literal, and
// operator tokens. Whitespace is a separator and produces no tokens.
func tokenize(content []byte) []string {
	text := string(content)
	tokens := make([]string, 0, len(text)/6)

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])

		switch {
		case unicode.IsSpace(r):
			i += size

		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, text[start:i])

		case unicode.IsDigit(r):
			start := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if !unicode.IsDigit(r) && r != '.' && r != 'x' && r != 'X' &&
					!('a' <= r && r <= 'f') && !('A' <= r && r <= 'F') && r != '_' {
					break
				}
				i += size
			}
			tokens = append(tokens, text[start:i])

		case r == '"' || r == '\'' || r == '`':
			quote := r
			start := i
			i += size
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				i += size
				if r == '\\' && i < len(text) {
					_, esc := utf8.DecodeRuneInString(text[i:])
					i += esc
					continue
				}
				if r == quote || r == '\n' {
					break
				}
			}
			tokens = append(tokens, text[start:i])

		default:
			tokens = append(tokens, text[i:i+size])
			i += size
		}
	}

	return tokens
}
