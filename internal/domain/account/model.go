package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/pkg/validation"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is the most bcrypt will hash.
	MaxPasswordLength = 72
)

// passwordProblem returns the message for an unacceptable password, or "".
func passwordProblem(pw string) string {
	switch {
	case len(pw) < MinPasswordLength:
		return "password must be at least 8 characters"
	case len(pw) > MaxPasswordLength:
		return "password must be at most 72 bytes"
	}
	return ""
}

type Credential struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
	UpdatedAt    time.Time
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Token string `json:"token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate checks the form fields before the current password is verified.
func (r ChangePasswordRequest) Validate() error {
	errs := validation.Errors{}
	if r.CurrentPassword == "" {
		errs.Add("current_password", "current password is required")
	}
	if msg := passwordProblem(r.NewPassword); msg != "" {
		errs.Add("new_password", msg)
	}
	if r.ConfirmPassword != r.NewPassword {
		errs.Add("confirm_password", "passwords do not match")
	}
	return errs.Err()
}
