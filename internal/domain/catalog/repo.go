package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/pkg/apierror"
)

var ErrNotFound = fmt.Errorf("service %w", apierror.ErrNotFound)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Service, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Service, int, error)
	Categories(ctx context.Context, includeInactive bool) ([]string, error)
}
