package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/dental/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const profileCols = `id, full_name, email, COALESCE(phone, ''), COALESCE(address, ''),
	COALESCE(to_char(birthday, 'YYYY-MM-DD'), ''), COALESCE(gender, ''),
	COALESCE(nationality, ''), COALESCE(occupation, ''), role, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &p.Address,
		&p.Birthday, &p.Gender, &p.Nationality, &p.Occupation, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapUniqueErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO profiles (id, full_name, email, phone, address, birthday, gender, nationality, occupation, role)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		p.ID, p.FullName, p.Email, nullable(p.Phone), nullable(p.Address), nullable(p.Birthday),
		nullable(p.Gender), nullable(p.Nationality), nullable(p.Occupation), p.Role,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapUniqueErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE profiles SET full_name=$2, email=$3, phone=$4, address=$5, birthday=$6::date,
			gender=$7, nationality=$8, occupation=$9, role=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FullName, p.Email, nullable(p.Phone), nullable(p.Address), nullable(p.Birthday),
		nullable(p.Gender), nullable(p.Nationality), nullable(p.Occupation), p.Role,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return mapUniqueErr(err)
}

func (r *repoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Profile, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if params.Role != "" {
		where += fmt.Sprintf(` AND role = $%d`, idx)
		args = append(args, params.Role)
		idx++
	}
	if params.Query != "" {
		where += fmt.Sprintf(` AND (full_name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+params.Query+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM profiles`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + profileCols + ` FROM profiles` + where +
		fmt.Sprintf(` ORDER BY full_name ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
