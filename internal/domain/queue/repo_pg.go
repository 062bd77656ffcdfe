package queue

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

const entryCols = `q.id, q.branch_id, q.patient_id, COALESCE(p.full_name, ''), q.queue_number, q.status,
	q.estimated_wait_time, q.created_at, q.updated_at, q.called_at, q.finished_at`

const entryFrom = ` FROM queue q LEFT JOIN profiles p ON p.id = q.patient_id `

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.BranchID, &e.PatientID, &e.PatientName, &e.QueueNumber, &e.Status,
		&e.EstimatedWaitTime, &e.CreatedAt, &e.UpdatedAt, &e.CalledAt, &e.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *repoPG) WithBranchLock(ctx context.Context, branch string, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "queue:"+branch); err != nil {
			return fmt.Errorf("lock branch queue: %w", err)
		}
		return fn(ctx)
	})
}

func (r *repoPG) NextNumber(ctx context.Context, branch string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(MAX(queue_number), 0) + 1 FROM queue WHERE branch_id = $1`, branch).Scan(&n)
	return n, err
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO queue (id, branch_id, patient_id, queue_number, status, estimated_wait_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		e.ID, e.BranchID, e.PatientID, e.QueueNumber, e.Status, e.EstimatedWaitTime,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, branch string, id uuid.UUID) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+entryFrom+`WHERE q.id = $1 AND q.branch_id = $2`, id, branch))
}

func (r *repoPG) ActiveForPatient(ctx context.Context, branch string, patientID uuid.UUID) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+entryFrom+`WHERE q.branch_id = $1 AND q.patient_id = $2
			AND q.status IN ('waiting', 'serving')
		ORDER BY q.queue_number LIMIT 1`, branch, patientID))
}

func (r *repoPG) Serving(ctx context.Context, branch string) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+entryFrom+`WHERE q.branch_id = $1 AND q.status = 'serving' LIMIT 1`, branch))
}

func (r *repoPG) Waiting(ctx context.Context, branch string) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+entryFrom+`WHERE q.branch_id = $1 AND q.status = 'waiting'
		ORDER BY q.queue_number`, branch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, e *Entry) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE queue SET status = $3, called_at = $4, finished_at = $5, updated_at = $6
		WHERE id = $1 AND branch_id = $2`,
		e.ID, e.BranchID, e.Status, e.CalledAt, e.FinishedAt, e.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// mapErr turns the serving and numbering unique indexes into conflicts.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrInvalidTransition)
	case "23503":
		return ErrPatientNotFound
	}
	return err
}
