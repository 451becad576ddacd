// Package sanitize normalizes free text entered through the portal before it
// is stored. Rendering is the client's job, so markup is kept as typed.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text normalizes multi-line input such as message bodies and descriptions:
// NFC form, control characters removed except newline and tab, outer
// whitespace trimmed.
func Text(input string) string {
	input = norm.NFC.String(input)
	input = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == '\r' || unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(input)
}

// Line normalizes single-line input such as names and titles. Runs of
// whitespace, newlines included, collapse to one space.
func Line(input string) string {
	return strings.Join(strings.Fields(Text(input)), " ")
}

// Email trims and lowercases an address
func Email(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Phone keeps digits and a leading plus sign
func Phone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
