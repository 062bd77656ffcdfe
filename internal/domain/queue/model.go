package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/pkg/apierror"
)

const (
	StatusWaiting   = "waiting"
	StatusServing   = "serving"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var (
	ErrNotFound          = fmt.Errorf("queue entry %w", apierror.ErrNotFound)
	ErrQueueEmpty        = fmt.Errorf("no patients waiting: %w", apierror.ErrNotFound)
	ErrAlreadyQueued     = fmt.Errorf("patient is already in the queue: %w", apierror.ErrConflict)
	ErrInvalidTransition = fmt.Errorf("invalid status transition: %w", apierror.ErrConflict)
	ErrPatientNotFound   = fmt.Errorf("patient %w", apierror.ErrNotFound)
)

// transitions lists the allowed next states. Completed and cancelled are
// terminal.
var transitions = map[string][]string{
	StatusWaiting: {StatusServing, StatusCancelled},
	StatusServing: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an entry may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the entry still occupies a place in the queue.
func IsActive(status string) bool {
	return status == StatusWaiting || status == StatusServing
}

type Entry struct {
	ID                uuid.UUID  `json:"id"`
	BranchID          string     `json:"branch_id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	PatientName       string     `json:"patient_name,omitempty"`
	QueueNumber       int        `json:"queue_number"`
	Status            string     `json:"status"`
	EstimatedWaitTime *int       `json:"estimated_wait_time,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CalledAt          *time.Time `json:"called_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`

	// WaitMinutes is computed per request for snapshot entries.
	WaitMinutes int `json:"wait_minutes"`
}

// moveTo applies a transition and stamps the matching timestamp.
func (e *Entry) moveTo(status string, at time.Time) error {
	if !CanTransition(e.Status, status) {
		return fmt.Errorf("%s -> %s: %w", e.Status, status, ErrInvalidTransition)
	}
	e.Status = status
	e.UpdatedAt = at
	switch status {
	case StatusServing:
		e.CalledAt = &at
	case StatusCompleted, StatusCancelled:
		e.FinishedAt = &at
	}
	return nil
}

// Snapshot is the live view of one branch's queue.
type Snapshot struct {
	BranchID    string    `json:"branch_id"`
	Serving     *Entry    `json:"serving"`
	Waiting     []*Entry  `json:"waiting"`
	GeneratedAt time.Time `json:"generated_at"`
}

func waitMinutes(now, since time.Time) int {
	if now.Before(since) {
		return 0
	}
	return int(now.Sub(since) / time.Minute)
}
