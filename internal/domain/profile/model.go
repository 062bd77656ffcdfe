package profile

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/pkg/validation"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

type Profile struct {
	ID          uuid.UUID `json:"id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Birthday    string    `json:"birthday"`
	Gender      string    `json:"gender"`
	Nationality string    `json:"nationality"`
	Occupation  string    `json:"occupation"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is the slice of a profile shown next to clinical records.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone,omitempty"`
	Birthday string    `json:"birthday,omitempty"`
	Gender   string    `json:"gender,omitempty"`
}

func (p *Profile) Summary() Summary {
	return Summary{ID: p.ID, FullName: p.FullName, Email: p.Email, Phone: p.Phone, Birthday: p.Birthday, Gender: p.Gender}
}

var validGenders = map[string]bool{"": true, "male": true, "female": true, "other": true}

var validRoles = map[string]bool{"admin": true, "dentist": true, "staff": true, "patient": true}

func IsValidRole(role string) bool { return validRoles[role] }

// Normalize trims whitespace and lowercases email and gender.
func (p *Profile) Normalize() {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	p.Birthday = strings.TrimSpace(p.Birthday)
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	p.Nationality = strings.TrimSpace(p.Nationality)
	p.Occupation = strings.TrimSpace(p.Occupation)
}

// Validate checks the profile form. today is the clinic-local date.
func (p *Profile) Validate(today time.Time) error {
	errs := validation.Errors{}
	if p.FullName == "" {
		errs.Add("full_name", "full name is required")
	} else if len(p.FullName) > 200 {
		errs.Add("full_name", "full name must be at most 200 characters")
	}
	if p.Email == "" {
		errs.Add("email", "email is required")
	} else if !validation.IsEmail(p.Email) {
		errs.Add("email", "email is invalid")
	}
	if p.Phone != "" && !validation.IsPhone(p.Phone) {
		errs.Add("phone", "phone must contain 10 to 13 digits")
	}
	if p.Birthday != "" {
		bd, err := time.Parse(DateLayout, p.Birthday)
		if err != nil {
			errs.Add("birthday", "birthday must be a YYYY-MM-DD date")
		} else if bd.After(dateOnly(today)) {
			errs.Add("birthday", "birthday cannot be in the future")
		}
	}
	if !validGenders[p.Gender] {
		errs.Add("gender", "gender must be male, female or other")
	}
	if p.Role != "" && !validRoles[p.Role] {
		errs.Add("role", "unknown role")
	}
	return errs.Err()
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
