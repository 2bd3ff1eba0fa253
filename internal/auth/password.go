// Package auth holds the credential rules for local taskbridge users.
package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is where bcrypt stops reading input.
	MaxPasswordBytes  = 72
	MaxUsernameLength = 32

	hashCost = bcrypt.DefaultCost
)

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameInvalid  = errors.New("invalid username")
	ErrPasswordRejected = errors.New("password rejected")
)

var usernameChars = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9._-]*[a-z0-9])?$`)

// noUserHash stands in for a stored hash when the login name is unknown or
// disabled, so those attempts pay for a full bcrypt comparison too.
var noUserHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("taskbridge:no-such-user"), hashCost)
	if err != nil {
		panic(fmt.Sprintf("auth: build placeholder hash: %v", err))
	}
	return hash
})

// NormalizeUsername trims and lowercases raw and checks it is a usable login
// name: up to MaxUsernameLength letters, digits, '.', '_' or '-', starting and
// ending with a letter or digit.
func NormalizeUsername(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case name == "":
		return "", ErrUsernameRequired
	case len(name) > MaxUsernameLength:
		return "", fmt.Errorf("%w: longer than %d characters", ErrUsernameInvalid, MaxUsernameLength)
	case !usernameChars.MatchString(name):
		return "", fmt.Errorf("%w %q: use lowercase letters, digits, '.', '_' or '-'", ErrUsernameInvalid, name)
	}
	return name, nil
}

// ValidatePassword enforces the password rules applied by `user add`.
func ValidatePassword(password string) error {
	var reason string
	switch {
	case !utf8.ValidString(password):
		reason = "not valid UTF-8"
	case utf8.RuneCountInString(password) < MinPasswordLength:
		reason = fmt.Sprintf("shorter than %d characters", MinPasswordLength)
	case len(password) > MaxPasswordBytes:
		reason = fmt.Sprintf("longer than %d bytes", MaxPasswordBytes)
	case strings.TrimSpace(password) != password:
		reason = "leading or trailing whitespace"
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPasswordRejected, reason)
}

// HashPassword validates password and returns its bcrypt hash.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether candidate matches passwordHash. An empty
// hash never matches but still costs one bcrypt comparison.
func VerifyPassword(passwordHash, candidate string) bool {
	stored := []byte(strings.TrimSpace(passwordHash))
	if len(stored) == 0 {
		_ = bcrypt.CompareHashAndPassword(noUserHash(), []byte(candidate))
		return false
	}
	return bcrypt.CompareHashAndPassword(stored, []byte(candidate)) == nil
}
