package utils

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const MinPasswordLength = 8

// HasLetter returns true if s contains at least one ASCII letter (a-zA-Z)
func HasLetter(s string) bool {
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return true
		}
	}
	return false
}

// HasNumber returns true if s contains at least one ASCII digit (0-9)
func HasNumber(s string) bool {
	for _, r := range s {
		if '0' <= r && r <= '9' {
			return true
		}
	}
	return false
}

// PasswordProblem describes why a password is rejected, or returns "".
func PasswordProblem(pw string) string {
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return "Password must be at least " + strconv.Itoa(MinPasswordLength) + " characters"
	}
	if !HasLetter(pw) || !HasNumber(pw) {
		return "Password must contain at least one letter and one number"
	}
	return ""
}

// IntOr parses a query value, falling back to def when empty or malformed.
func IntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// Truthy accepts 1/true/yes/on in any case.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
