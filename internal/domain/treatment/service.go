package treatment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/pkg/apierror"
)

var ErrConfirmationRequired = fmt.Errorf("confirmation required: %w", apierror.ErrConflict)

type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewService validates treatment dates against the clinic's local day.
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

func (s *Service) today() time.Time { return s.now().In(s.loc) }

func (s *Service) List(ctx context.Context, patientID uuid.UUID) ([]*Treatment, error) {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(items)
	return items, nil
}

func (s *Service) Get(ctx context.Context, patientID, id uuid.UUID) (*Treatment, error) {
	return s.repo.GetByID(ctx, patientID, id)
}

func (s *Service) Create(ctx context.Context, patientID uuid.UUID, t *Treatment) error {
	t.Normalize()
	t.PatientID = patientID
	if err := t.Validate(s.today()); err != nil {
		return err
	}
	return s.repo.Create(ctx, t)
}

// Update overwrites the record; no history is kept.
func (s *Service) Update(ctx context.Context, patientID, id uuid.UUID, t *Treatment) error {
	if _, err := s.repo.GetByID(ctx, patientID, id); err != nil {
		return err
	}
	t.Normalize()
	t.ID = id
	t.PatientID = patientID
	if err := t.Validate(s.today()); err != nil {
		return err
	}
	return s.repo.Update(ctx, t)
}

func (s *Service) Delete(ctx context.Context, patientID, id uuid.UUID, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	return s.repo.Delete(ctx, patientID, id)
}

// ByTooth returns the records for one tooth, newest first.
func (s *Service) ByTooth(ctx context.Context, patientID uuid.UUID, tooth int) ([]*Treatment, error) {
	items, err := s.List(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return GroupByTooth(items)[tooth], nil
}
