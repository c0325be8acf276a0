package utils

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
)

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail checks if an email address is valid
func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}

	domainParts := strings.Split(parts[1], ".")
	return len(domainParts) >= 2 && domainParts[len(domainParts)-1] != ""
}

// NormalizePhone strips spaces, dashes and parentheses from a phone number
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// IsValidPhone accepts an optional leading + followed by at least minDigits digits
func IsValidPhone(phone string, minDigits int) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < minDigits {
		return false
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// UsernameBase derives a username stem from the local part of an email
// address. Falls back to "user" when nothing usable remains.
func UsernameBase(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}
	base := strings.ReplaceAll(slug.Make(local), "-", "")
	if len(base) > 40 {
		base = base[:40]
	}
	if base == "" {
		return "user"
	}
	return base
}
