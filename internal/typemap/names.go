package typemap

import (
	"go/token"
	"go/types"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GoName converts a schema identifier (snake_case, camelCase or PascalCase)
// to an exported Go identifier.
func GoName(s string) string {
	// A Caser keeps state between calls and is not safe for concurrent use.
	title := cases.Title(language.Und, cases.NoLower)

	var b strings.Builder
	for _, word := range splitWords(s) {
		b.WriteString(title.String(word))
	}
	out := b.String()
	if out == "" {
		return "X"
	}
	if r := []rune(out)[0]; !unicode.IsLetter(r) {
		out = "X" + out
	}
	return out
}

// ParamName converts a schema identifier to an unexported Go identifier
// that is safe to use as a parameter or local variable. Keywords and
// predeclared names such as len or string get a trailing underscore.
func ParamName(s string) string {
	r := []rune(GoName(s))
	r[0] = unicode.ToLower(r[0])
	out := string(r)
	if token.IsKeyword(out) || types.Universe.Lookup(out) != nil {
		out += "_"
	}
	return out
}

// splitWords breaks s on every rune that cannot appear in a Go identifier.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
