// Package latex escapes free text for verbatim embedding in LaTeX source.
package latex

import "strings"

// replacement is one literal substitution applied by Escape.
type replacement struct {
	old string
	new string
}

// replacements is applied strictly in order. The backslash must come first:
// every later substitution introduces backslashes that must survive untouched.
// The backslash form carries no braces so the brace pass cannot corrupt it.
var replacements = []replacement{
	{`\`, `\textbackslash `},
	{`{`, `\{`},
	{`}`, `\}`},
	{`_`, `\_`},
	{`%`, `\%`},
	{`$`, `\$`},
	{`&`, `\&`},
	{`#`, `\#`},
	{`^`, `\^{}`},
	{`~`, `\~{}`},
}

// Escape returns s with LaTeX special characters replaced by their literal
// forms. Escape is not idempotent: escaping twice escapes the inserted backslashes.
func Escape(s string) string {
	for _, r := range replacements {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return s
}

// EscapeOptional escapes *s, passing a nil pointer through unchanged.
func EscapeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	escaped := Escape(*s)
	return &escaped
}
