package validation

import (
	"fmt"
	"testing"
)

func TestErrors_ErrNilWhenEmpty(t *testing.T) {
	errs := Errors{}
	if errs.Err() != nil {
		t.Fatal("expected nil error for empty Errors")
	}
}

func TestErrors_AddKeepsFirst(t *testing.T) {
	errs := Errors{}
	errs.Add("email", "email is required")
	errs.Add("email", "email is invalid")
	if errs["email"] != "email is required" {
		t.Errorf("expected first message to win, got %q", errs["email"])
	}
}

func TestErrors_ErrorIsSorted(t *testing.T) {
	errs := Errors{"phone": "bad", "email": "bad"}
	want := "validation failed: email: bad; phone: bad"
	if errs.Error() != want {
		t.Errorf("Error() = %q, want %q", errs.Error(), want)
	}
}

func TestAs_Wrapped(t *testing.T) {
	err := fmt.Errorf("save profile: %w", Errors{"full_name": "required"})
	ve, ok := As(err)
	if !ok {
		t.Fatal("expected wrapped validation errors to be found")
	}
	if ve["full_name"] != "required" {
		t.Errorf("unexpected errors: %v", ve)
	}
}

func TestIsEmail(t *testing.T) {
	valid := []string{"a@b.co", "dr.cruz@clinic.example.ph"}
	invalid := []string{"", "plain", "a@b", "a b@c.d", "@c.d"}
	for _, s := range valid {
		if !IsEmail(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if IsEmail(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestIsPhone(t *testing.T) {
	tests := map[string]bool{
		"09171234567":      true,
		"+63 917 123 4567": true,
		"(02) 8123-45678":  true,
		"12345":            false,
		"0917-abc-4567":    false,
		"+63917123456789":  false,
	}
	for in, want := range tests {
		if got := IsPhone(in); got != want {
			t.Errorf("IsPhone(%q) = %v, want %v", in, got, want)
		}
	}
}
