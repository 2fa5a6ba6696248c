// Package phone holds the small amount of phone number handling the gateway
// needs: E.164 validation and lenient normalization of user-entered numbers.
package phone

import (
	"regexp"
	"strings"
)

var (
	e164Pattern     = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	areaCodePattern = regexp.MustCompile(`^\d{3}$`)
)

// IsE164 reports whether s is a valid E.164 number: leading +, country code,
// up to 15 digits, no separators.
func IsE164(s string) bool {
	return e164Pattern.MatchString(s)
}

// Normalize strips common separators (spaces, dashes, dots, parentheses) from
// a user-entered number. It does not add a country code; the result still has
// to pass IsE164.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
	return replacer.Replace(s)
}

// IsAreaCode reports whether s is exactly three digits.
func IsAreaCode(s string) bool {
	return areaCodePattern.MatchString(s)
}
