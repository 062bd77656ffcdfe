package catalog

import (
	"time"

	"github.com/google/uuid"
)

type Service struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Price           *float64  `json:"price,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

type Filter struct {
	Category        string
	Query           string
	IncludeInactive bool
}
