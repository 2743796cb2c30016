package utils

import (
	"regexp"
	"strings"
)

var (
	fileNumberRegex = regexp.MustCompile(`^\d{8,9}$`)
	controlRegex    = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// CleanFileNumber strips surrounding whitespace from a veteran file
// number as entered by a user.
func CleanFileNumber(fileNumber string) string {
	return strings.TrimSpace(fileNumber)
}

// ValidFileNumber reports whether a cleaned file number has a valid
// shape: 8 or 9 digits, nothing else. VACOLS-style numbers with a
// trailing letter are not valid here.
func ValidFileNumber(fileNumber string) bool {
	return fileNumberRegex.MatchString(fileNumber)
}

// SanitizeString removes control characters from free-text input.
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}
