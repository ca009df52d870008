package otcauth

import (
	"regexp"
	"strings"
)

var (
	// E.164: leading +, 8 to 15 digits, no leading zero after the +.
	phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// NormalizeContact trims surrounding whitespace and lowercases email
// addresses. Phone numbers are returned verbatim apart from trimming.
func NormalizeContact(contact string) string {
	contact = strings.TrimSpace(contact)
	if strings.Contains(contact, "@") {
		return strings.ToLower(contact)
	}
	return contact
}

// ValidContact reports whether contact is an E.164 phone number or a
// plausible email address.
func ValidContact(contact string) bool {
	if phonePattern.MatchString(contact) {
		return true
	}
	return emailPattern.MatchString(contact)
}
