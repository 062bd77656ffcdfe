package profile

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

func (s *Service) today() time.Time { return s.now().In(s.loc) }

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// Create registers a profile. Staff registering walk-in patients leave the
// role empty and get "patient".
func (s *Service) Create(ctx context.Context, p *Profile) error {
	p.Normalize()
	if p.Role == "" {
		p.Role = "patient"
	}
	if err := p.Validate(s.today()); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

// UpdateOwn applies the profile form for the signed-in user. The role is
// never taken from the form.
func (s *Service) UpdateOwn(ctx context.Context, id uuid.UUID, form *Profile) (*Profile, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	form.Normalize()
	form.ID = id
	form.Role = current.Role
	form.CreatedAt = current.CreatedAt
	if err := form.Validate(s.today()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, form); err != nil {
		return nil, err
	}
	return form, nil
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Profile, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
