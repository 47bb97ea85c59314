package phone

import "strings"

// MinDigits is the shortest phone number accepted after normalization.
const MinDigits = 10

// Normalize keeps only the ASCII digits of raw.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// Valid reports whether a normalized number is long enough to be dialled.
func Valid(normalized string) bool {
	return len(normalized) >= MinDigits
}

// Format renders an 11 digit number starting with 7 as +7 (999) 123-45-67.
// Anything else is returned with a leading plus.
func Format(normalized string) string {
	if len(normalized) == 11 && normalized[0] == '7' {
		return "+7 (" + normalized[1:4] + ") " + normalized[4:7] + "-" + normalized[7:9] + "-" + normalized[9:]
	}
	return "+" + normalized
}

// IsCode reports whether s is exactly n ASCII digits.
func IsCode(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
