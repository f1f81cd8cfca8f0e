package auth

import (
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest accepted password, counted after trimming.
const MinPasswordLength = 8

// passwordSymbols is the accepted symbol class.
const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// Password policy messages, reported in this order.
const (
	msgPasswordLength = "Password must be at least 8 characters long"
	msgPasswordUpper  = "Password must contain at least one uppercase letter"
	msgPasswordLower  = "Password must contain at least one lowercase letter"
	msgPasswordDigit  = "Password must contain at least one number"
	msgPasswordSymbol = "Password must contain at least one special character"
)

// ValidatePassword checks password against the policy and returns every
// violated rule. A nil result means the password is acceptable.
func ValidatePassword(password string) []string {
	var violations []string

	if len([]rune(strings.TrimSpace(password))) < MinPasswordLength {
		violations = append(violations, msgPasswordLength)
	}

	var upper, lower, digit, symbol bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		case strings.ContainsRune(passwordSymbols, c):
			symbol = true
		}
	}

	if !upper {
		violations = append(violations, msgPasswordUpper)
	}
	if !lower {
		violations = append(violations, msgPasswordLower)
	}
	if !digit {
		violations = append(violations, msgPasswordDigit)
	}
	if !symbol {
		violations = append(violations, msgPasswordSymbol)
	}

	return violations
}
