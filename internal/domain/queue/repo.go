package queue

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// WithBranchLock runs fn in a transaction that serializes every queue
	// change for branch.
	WithBranchLock(ctx context.Context, branch string, fn func(ctx context.Context) error) error
	NextNumber(ctx context.Context, branch string) (int, error)
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, branch string, id uuid.UUID) (*Entry, error)
	// ActiveForPatient returns the patient's waiting or serving entry.
	ActiveForPatient(ctx context.Context, branch string, patientID uuid.UUID) (*Entry, error)
	Serving(ctx context.Context, branch string) (*Entry, error)
	// Waiting returns waiting entries by ascending queue number.
	Waiting(ctx context.Context, branch string) ([]*Entry, error)
	UpdateStatus(ctx context.Context, e *Entry) error
}
