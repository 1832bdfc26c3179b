// Package numerals converts Arabic-Indic digit glyphs to ASCII digits.
package numerals

import "strings"

// '٠' through '٩' are contiguous code points (U+0660..U+0669).
const arabicZero = '٠'

// ToASCII replaces every Arabic-Indic digit in s with its ASCII equivalent.
// All other runes pass through unchanged; an empty input yields "".
func ToASCII(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= arabicZero && r <= arabicZero+9 {
			b.WriteRune('0' + (r - arabicZero))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
