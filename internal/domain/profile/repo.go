package profile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/pkg/apierror"
)

var (
	ErrNotFound   = fmt.Errorf("profile %w", apierror.ErrNotFound)
	ErrEmailTaken = fmt.Errorf("email already registered: %w", apierror.ErrConflict)
)

type SearchParams struct {
	Role  string
	Query string
}

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Profile, int, error)
}
