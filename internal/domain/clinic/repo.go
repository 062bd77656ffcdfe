package clinic

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/dental/internal/platform/db"
)

type Repository interface {
	Get(ctx context.Context) (*Info, error)
	Save(ctx context.Context, info *Info) error
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) Get(ctx context.Context) (*Info, error) {
	var i Info
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT name, COALESCE(address, ''), COALESCE(phone, ''), COALESCE(email, ''),
			COALESCE(opening_hours, ''), COALESCE(description, ''), updated_at
		FROM clinic_info WHERE id = 1`,
	).Scan(&i.Name, &i.Address, &i.Phone, &i.Email, &i.OpeningHours, &i.Description, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Info{}, nil
	}
	return &i, err
}

func (r *repoPG) Save(ctx context.Context, i *Info) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO clinic_info (id, name, address, phone, email, opening_hours, description, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address,
			phone = EXCLUDED.phone, email = EXCLUDED.email, opening_hours = EXCLUDED.opening_hours,
			description = EXCLUDED.description, updated_at = NOW()
		RETURNING updated_at`,
		i.Name, i.Address, i.Phone, i.Email, i.OpeningHours, i.Description,
	).Scan(&i.UpdatedAt)
}
