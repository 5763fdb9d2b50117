package models

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidatePatientName checks a patient name before registration: at least
// three characters after trimming, and no digits. Pure; the reason string is
// empty when the name is valid.
func ValidatePatientName(name string) (bool, string) {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < 3 {
		return false, "name must have at least 3 characters"
	}
	for _, r := range name {
		if unicode.IsDigit(r) {
			return false, "name must not contain digits"
		}
	}
	return true, ""
}
