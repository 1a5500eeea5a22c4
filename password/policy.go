package password

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// PolicyMinLength is the shortest password the policy accepts, in characters.
	PolicyMinLength = 8
	// PolicyMaxLength is the longest password the policy accepts, in characters.
	PolicyMaxLength = 50
	// PolicySymbols is the set a password must draw at least one symbol from.
	PolicySymbols = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

var (
	// ErrPolicyLength is returned for passwords outside 8-50 characters.
	ErrPolicyLength = errors.New("password must be between 8 and 50 characters")
	// ErrPolicyLower is returned when no lowercase letter is present.
	ErrPolicyLower = errors.New("password must contain a lowercase letter")
	// ErrPolicyUpper is returned when no uppercase letter is present.
	ErrPolicyUpper = errors.New("password must contain an uppercase letter")
	// ErrPolicyDigit is returned when no digit is present.
	ErrPolicyDigit = errors.New("password must contain a digit")
	// ErrPolicySymbol is returned when no symbol from PolicySymbols is present.
	ErrPolicySymbol = errors.New("password must contain a symbol")
)

// ValidatePolicy reports the first rule password breaks, or nil.
func ValidatePolicy(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PolicyMinLength || n > PolicyMaxLength {
		return ErrPolicyLength
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PolicySymbols, r):
			symbol = true
		}
	}

	switch {
	case !lower:
		return ErrPolicyLower
	case !upper:
		return ErrPolicyUpper
	case !digit:
		return ErrPolicyDigit
	case !symbol:
		return ErrPolicySymbol
	}
	return nil
}
