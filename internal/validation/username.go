// Package validation holds input format rules shared by registration and the
// CLI prompts.
package validation

import (
	"fmt"
	"regexp"
)

// Username length bounds.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 32
)

// usernamePattern допускает латинские буквы, цифры и нижнее подчеркивание
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidateUsername reports whether username is acceptable for registration.
// The rules are deliberately strict: usernames end up in backup file names
// and store keys, so only ASCII word characters are allowed.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("username cannot be empty")
	case len(username) < MinUsernameLen:
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLen)
	case len(username) > MaxUsernameLen:
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	case !usernamePattern.MatchString(username):
		return fmt.Errorf("username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}
	return nil
}
