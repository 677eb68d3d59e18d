// Package symbols maps broker-reported symbol spellings to canonical
// configuration entries.
package symbols

import "unicode"

// Normalize strips every character that is not a letter or digit.
// Case is preserved; callers lower-case where comparison requires it.
// "#RACE" becomes "RACE", "BTCUSD.m" becomes "BTCUSDm".
func Normalize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return string(out)
}

// IsForexLike reports whether a normalized symbol looks like an FX or metal
// pair: at least six characters, all alphabetic.
func IsForexLike(s string) bool {
	if len(s) < 6 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
