package auth

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

const MinPassphraseLength = 16

var (
	reUpper  = regexp.MustCompile(`[A-Z]`)
	reLower  = regexp.MustCompile(`[a-z]`)
	reDigit  = regexp.MustCompile(`[0-9]`)
	reSymbol = regexp.MustCompile(`[@#$%^&+=!]`)
)

// ValidatePassphrase enforces the master passphrase policy. Initialize does
// not call it; callers creating a vault do.
func ValidatePassphrase(pw string) error {
	switch {
	case utf8.RuneCountInString(pw) < MinPassphraseLength:
		return errors.New("passphrase must be at least 16 characters")
	case !reUpper.MatchString(pw):
		return errors.New("passphrase must include an uppercase letter")
	case !reLower.MatchString(pw):
		return errors.New("passphrase must include a lowercase letter")
	case !reDigit.MatchString(pw):
		return errors.New("passphrase must include a digit")
	case !reSymbol.MatchString(pw):
		return errors.New("passphrase must include one of @#$%^&+=!")
	default:
		return nil
	}
}
