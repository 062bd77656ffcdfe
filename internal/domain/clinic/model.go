package clinic

import (
	"strings"
	"time"

	"github.com/dentaldesk/dental/pkg/validation"
)

// Info is the single clinic-details row shown on public pages and printouts.
type Info struct {
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	OpeningHours string    `json:"opening_hours"`
	Description  string    `json:"description"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (i *Info) Normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.Address = strings.TrimSpace(i.Address)
	i.Phone = strings.TrimSpace(i.Phone)
	i.Email = strings.ToLower(strings.TrimSpace(i.Email))
	i.OpeningHours = strings.TrimSpace(i.OpeningHours)
	i.Description = strings.TrimSpace(i.Description)
}

func (i *Info) Validate() error {
	errs := validation.Errors{}
	if i.Name == "" {
		errs.Add("name", "clinic name is required")
	}
	if i.Email != "" && !validation.IsEmail(i.Email) {
		errs.Add("email", "email is invalid")
	}
	if i.Phone != "" && !validation.IsPhone(i.Phone) {
		errs.Add("phone", "phone must contain 10 to 13 digits")
	}
	return errs.Err()
}
