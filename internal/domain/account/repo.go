package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/dental/internal/platform/db"
	"github.com/dentaldesk/dental/pkg/apierror"
)

var ErrNoCredential = fmt.Errorf("credential %w", apierror.ErrNotFound)

type Repository interface {
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Credential, error)
	Upsert(ctx context.Context, c *Credential) error
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const credCols = `user_id, email, password_hash, updated_at`

func scanCredential(row pgx.Row) (*Credential, error) {
	var c Credential
	err := row.Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoCredential
	}
	return &c, err
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	return scanCredential(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+credCols+` FROM credentials WHERE email = $1`, email))
}

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Credential, error) {
	return scanCredential(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+credCols+` FROM credentials WHERE user_id = $1`, userID))
}

func (r *repoPG) Upsert(ctx context.Context, c *Credential) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO credentials (user_id, email, password_hash, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash, updated_at = NOW()
		RETURNING updated_at`,
		c.UserID, c.Email, c.PasswordHash,
	).Scan(&c.UpdatedAt)
}
