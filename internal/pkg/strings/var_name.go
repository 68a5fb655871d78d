// Package strings provides identifier helpers for generated code.
package strings

import (
	"strings"
	"unicode"
)

// ToLowerCamel lowers the leading run of upper case letters, so "HTTPClient" becomes "httpClient".
func ToLowerCamel(s string) string {
	i := 0
	for i < len(s) && unicode.IsUpper(rune(s[i])) {
		i++
	}
	if i > 1 && i < len(s) && unicode.IsLower(rune(s[i])) {
		i--
	}

	return strings.ToLower(s[:i]) + s[i:]
}

func ToUpperCamel(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

// Ident turns arbitrary text into a Go identifier fragment by dropping invalid runes
// and upper casing the rune that follows each dropped run.
func Ident(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			upper = b.Len() > 0
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if out == "" {
		return "value"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "v" + out
	}

	return out
}
