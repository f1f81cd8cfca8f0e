package auth

import (
	"strings"
	"testing"
)

func TestSanitizeInput(t *testing.T) {
	if got := SanitizeInput("  <b>Ada</b>  "); got != "bAda/b" {
		t.Errorf("SanitizeInput() = %q, want %q", got, "bAda/b")
	}
	if got := SanitizeInput(strings.Repeat("é", 1200)); len([]rune(got)) != 1000 {
		t.Errorf("SanitizeInput() length = %d runes, want 1000", len([]rune(got)))
	}
}

func TestZambianPhone(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		want  string
	}{
		{"+260971234567", true, "+260971234567"},
		{"0971234567", true, "+260971234567"},
		{"971234567", true, "+260971234567"},
		{"097 123 4567", true, "+260971234567"},
		{"0671234567", false, "0671234567"},
		{"+26097123456", false, "+26097123456"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsValidZambianPhone(tt.in); got != tt.valid {
				t.Errorf("IsValidZambianPhone(%q) = %v, want %v", tt.in, got, tt.valid)
			}
			if got := FormatZambianPhone(tt.in); got != tt.want {
				t.Errorf("FormatZambianPhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsValidEmail(t *testing.T) {
	for email, want := range map[string]bool{
		"a@b.com":         true,
		"first.last@x.zm": true,
		"missing-at.com":  false,
		"a@b":             false,
		"a b@c.com":       false,
	} {
		if got := IsValidEmail(email); got != want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", email, got, want)
		}
	}
}

func TestValidateRegistration_Valid(t *testing.T) {
	reg, violations := validateRegistration(RegisterInput{
		Email:       "  A@B.com ",
		Password:    "Str0ng!Pass",
		Phone:       "0971234567",
		Role:        "tenant",
		AcceptTerms: true,
	})
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none", violations)
	}
	if reg.email != "a@b.com" || reg.phone != "+260971234567" || reg.role != RoleTenant {
		t.Errorf("registration = %+v", reg)
	}
}

func TestValidateRegistration_ReportsEverything(t *testing.T) {
	_, violations := validateRegistration(RegisterInput{
		FirstName:       "A",
		LastName:        "B",
		Email:           "not-an-email",
		Password:        "weak",
		ConfirmPassword: "different",
		Phone:           "12345",
		Role:            "SYSTEM_ADMIN",
	})

	want := []string{
		"First name must be at least 2 characters long",
		"Last name must be at least 2 characters long",
		"Please provide a valid email address",
		msgPasswordLength,
		msgPasswordUpper,
		msgPasswordDigit,
		msgPasswordSymbol,
		"Passwords do not match",
		"Please provide a valid Zambian phone number",
		"Please select a valid role",
		"You must accept the terms and conditions",
	}
	if len(violations) != len(want) {
		t.Fatalf("violations = %v\nwant %v", violations, want)
	}
	for i := range want {
		if violations[i] != want[i] {
			t.Errorf("violation[%d] = %q, want %q", i, violations[i], want[i])
		}
	}
}

func TestValidateRegistration_StaffNeedsLandlord(t *testing.T) {
	_, violations := validateRegistration(RegisterInput{
		Email:       "s@b.com",
		Password:    "Str0ng!Pass",
		Phone:       "+260971234567",
		Role:        "Staff",
		AcceptTerms: true,
	})
	if len(violations) != 1 || violations[0] != "Landlord selection is required for staff members" {
		t.Errorf("violations = %v", violations)
	}
}
