package auth

import (
	"regexp"
	"strings"
	"unicode"
)

// maxInputLength caps every sanitised free-text field.
const maxInputLength = 1000

const (
	minNameLength = 2
	zambiaPrefix  = "+260"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// zambianPhonePattern accepts +260XXXXXXXXX, 0XXXXXXXXX or XXXXXXXXX
	// where the subscriber number starts with 7, 8 or 9.
	zambianPhonePattern = regexp.MustCompile(`^(\+260|0)?[7-9]\d{8}$`)
)

// RegisterInput is the self-registration request.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	Phone           string
	Role            string
	Address         string
	LandlordID      string
	AcceptTerms     bool

	// SourceIP and UserAgent are recorded on security events only.
	SourceIP  string
	UserAgent string
}

// registration is RegisterInput after sanitising and validation.
type registration struct {
	firstName  string
	lastName   string
	email      string
	password   string
	phone      string
	role       Role
	address    string
	landlordID string
}

// SanitizeInput trims s, strips angle brackets and caps it at 1000 characters.
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, s)
	if r := []rune(s); len(r) > maxInputLength {
		s = string(r[:maxInputLength])
	}
	return s
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail reports whether email looks like local@domain.tld.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidZambianPhone reports whether phone, with whitespace removed, is a
// Zambian mobile number.
func IsValidZambianPhone(phone string) bool {
	return zambianPhonePattern.MatchString(stripSpaces(phone))
}

// FormatZambianPhone returns phone in +260XXXXXXXXX form. Invalid input is
// returned with whitespace removed and otherwise unchanged.
func FormatZambianPhone(phone string) string {
	p := stripSpaces(phone)
	if !zambianPhonePattern.MatchString(p) {
		return p
	}
	switch {
	case strings.HasPrefix(p, zambiaPrefix):
		return p
	case strings.HasPrefix(p, "0"):
		return zambiaPrefix + p[1:]
	default:
		return zambiaPrefix + p
	}
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ValidateRegistration returns every rule in violates, or nil. Transports
// call it to reject malformed requests before consuming a throttle attempt.
func ValidateRegistration(in RegisterInput) []string {
	_, violations := validateRegistration(in)
	return violations
}

// validateRegistration sanitises in and returns every violated rule.
// First and last name and the confirmation are checked only when supplied.
func validateRegistration(in RegisterInput) (registration, []string) {
	reg := registration{
		firstName:  SanitizeInput(in.FirstName),
		lastName:   SanitizeInput(in.LastName),
		email:      NormalizeEmail(SanitizeInput(in.Email)),
		password:   in.Password,
		phone:      FormatZambianPhone(SanitizeInput(in.Phone)),
		address:    SanitizeInput(in.Address),
		landlordID: SanitizeInput(in.LandlordID),
	}

	var violations []string

	if in.FirstName != "" && len([]rune(reg.firstName)) < minNameLength {
		violations = append(violations, "First name must be at least 2 characters long")
	}
	if in.LastName != "" && len([]rune(reg.lastName)) < minNameLength {
		violations = append(violations, "Last name must be at least 2 characters long")
	}

	if reg.email == "" || !IsValidEmail(reg.email) {
		violations = append(violations, "Please provide a valid email address")
	}

	violations = append(violations, ValidatePassword(in.Password)...)
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		violations = append(violations, "Passwords do not match")
	}

	switch {
	case reg.phone == "":
		violations = append(violations, "Phone number is required")
	case !IsValidZambianPhone(reg.phone):
		violations = append(violations, "Please provide a valid Zambian phone number")
	}

	role, err := ParseRole(in.Role)
	if err != nil || !containsRole(RegistrableRoles, role) {
		violations = append(violations, "Please select a valid role")
	} else {
		reg.role = role
		if role == RoleStaff && reg.landlordID == "" {
			violations = append(violations, "Landlord selection is required for staff members")
		}
	}

	if !in.AcceptTerms {
		violations = append(violations, "You must accept the terms and conditions")
	}

	return reg, violations
}
