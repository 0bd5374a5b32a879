// Package services – code sanitization
//
// This file implements the cheap rejection gate that runs before any database
// access: raw user input is normalized into the exact-match form codes are
// stored under, and malformed input is rejected with ErrInvalidCodeFormat.
package services

import (
	"regexp"
	"strings"
)

const (
	// codeMinLen and codeMaxLen bound the normalized code length.
	codeMinLen = 3
	codeMaxLen = 50
)

// disallowedCodeChars matches everything outside the stored code alphabet.
var disallowedCodeChars = regexp.MustCompile(`[^A-Z0-9-]`)

// SanitizeCode normalizes a raw user-supplied code string for lookup:
// surrounding whitespace is trimmed, the string is uppercased, and characters
// outside [A-Z0-9-] are stripped. The result must be 3-50 characters long,
// otherwise ErrInvalidCodeFormat is returned. Pure; no side effects.
func SanitizeCode(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = disallowedCodeChars.ReplaceAllString(s, "")
	if len(s) < codeMinLen || len(s) > codeMaxLen {
		return "", ErrInvalidCodeFormat
	}
	return s, nil
}
