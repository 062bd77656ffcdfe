package treatment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/pkg/apierror"
)

var (
	ErrNotFound        = fmt.Errorf("treatment %w", apierror.ErrNotFound)
	ErrPatientNotFound = fmt.Errorf("patient %w", apierror.ErrNotFound)
)

type Repository interface {
	Create(ctx context.Context, t *Treatment) error
	GetByID(ctx context.Context, patientID, id uuid.UUID) (*Treatment, error)
	Update(ctx context.Context, t *Treatment) error
	Delete(ctx context.Context, patientID, id uuid.UUID) error
	// ListByPatient returns all records newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Treatment, error)
}
