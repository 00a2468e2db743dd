// Package names normalizes person names and field keys coming from the HR
// database and the remote platforms.
package names

import (
	"regexp"
	"strings"
)

var (
	// boundaryBeforeWord splits "aWord" style boundaries: any rune followed
	// by a capitalized word.
	boundaryBeforeWord = regexp.MustCompile(`(.)([A-Z][a-z]+)`)

	// boundaryLowerUpper splits a lower-case letter or digit followed by an
	// upper-case letter.
	boundaryLowerUpper = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// SplitName splits a full name into first and last name. The last
// whitespace-separated token is the last name and everything before it,
// joined by single spaces, is the first name.
//
//	SplitName("Anna Maria Jensen") // "Anna Maria", "Jensen"
//	SplitName("Cher")              // "", "Cher"
func SplitName(full string) (first, last string) {
	tokens := strings.Fields(full)
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return "", tokens[0]
	default:
		return strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1]
	}
}

// CamelToSnake converts a CamelCase or camelCase identifier to snake_case.
// Runs of capitals are kept together, so "HTTPResponseCode" becomes
// "http_response_code". Only ASCII letters are lower-cased.
func CamelToSnake(s string) string {
	s = boundaryBeforeWord.ReplaceAllString(s, "${1}_${2}")
	s = boundaryLowerUpper.ReplaceAllString(s, "${1}_${2}")
	return toLowerASCII(s)
}

// CamelToSnakeMap returns a copy of m with every key converted by
// CamelToSnake. When two keys collapse to the same snake_case key the one
// that is already snake_case wins.
func CamelToSnakeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		key := CamelToSnake(k)
		if _, exists := out[key]; exists && key != k {
			continue
		}
		out[key] = v
	}
	return out
}

func toLowerASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}
