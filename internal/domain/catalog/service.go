package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Catalog is read-only; services are maintained by migrations or directly
// in the database.
type Catalog struct {
	repo Repository
}

func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

// Get hides inactive services from callers that may not see them.
func (s *Catalog) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*Service, error) {
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.Active && !includeInactive {
		return nil, ErrNotFound
	}
	return svc, nil
}

func (s *Catalog) List(ctx context.Context, f Filter, limit, offset int) ([]*Service, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Catalog) Categories(ctx context.Context, includeInactive bool) ([]string, error) {
	return s.repo.Categories(ctx, includeInactive)
}
