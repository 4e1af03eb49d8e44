package validation

import (
	"errors"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{3,30}$`)

// reservedUsernames collide with public routes or would be confusing on a profile URL.
var reservedUsernames = map[string]bool{
	"admin": true,
	"api":   true,
	"me":    true,
	"www":   true,
}

// NormalizeUsername lowercases and trims a requested username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username is required")
	}
	if !usernamePattern.MatchString(username) {
		return errors.New("username must be 3-30 characters of lowercase letters, numbers, '_' or '-'")
	}
	if reservedUsernames[username] {
		return errors.New("username is reserved")
	}
	return nil
}
