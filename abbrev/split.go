package abbrev

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const spaceSuffixedPunct = ".,!?;&"

func isWordRune(r rune) bool {
	return r == '_' || r == '\'' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Split cuts text into word runs, punctuation+space pairs, single spaces and
// single hyphens. Classes are tried in that order at every position; a
// character that starts none of them is dropped.
func Split(text string) []string {
	var tokens []string

	pos := 0
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])

		switch {
		case isWordRune(r):
			end := pos + size
			for end < len(text) {
				next, nextSize := utf8.DecodeRuneInString(text[end:])
				if !isWordRune(next) {
					break
				}
				end += nextSize
			}
			tokens = append(tokens, text[pos:end])
			pos = end

		case strings.ContainsRune(spaceSuffixedPunct, r) && pos+size < len(text) && text[pos+size] == ' ':
			tokens = append(tokens, text[pos:pos+size+1])
			pos += size + 1

		case r == ' ', r == '-':
			tokens = append(tokens, text[pos:pos+size])
			pos += size

		default:
			pos += size
		}
	}

	return tokens
}
