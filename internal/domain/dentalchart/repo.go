package dentalchart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/dental/internal/platform/db"
	"github.com/dentaldesk/dental/pkg/apierror"
)

var ErrNotFound = fmt.Errorf("dental chart %w", apierror.ErrNotFound)

type Repository interface {
	Get(ctx context.Context, patientID uuid.UUID) (*Record, error)
	// Save inserts or replaces the patient's chart.
	Save(ctx context.Context, rec *Record) error
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) Get(ctx context.Context, patientID uuid.UUID) (*Record, error) {
	rec := Record{PatientID: patientID}
	var raw []byte
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT chart_data, created_by, updated_at FROM dental_charts WHERE patient_id = $1`,
		patientID).Scan(&raw, &rec.CreatedBy, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Chart = &Chart{}
	if err := json.Unmarshal(raw, rec.Chart); err != nil {
		return nil, fmt.Errorf("decode chart for %s: %w", patientID, err)
	}
	return &rec, nil
}

func (r *repoPG) Save(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec.Chart)
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dental_charts (patient_id, chart_data, created_by)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (patient_id) DO UPDATE
			SET chart_data = EXCLUDED.chart_data, updated_at = NOW()
		RETURNING updated_at`,
		rec.PatientID, string(raw), rec.CreatedBy,
	).Scan(&rec.UpdatedAt)
}
