package treatment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/dental/internal/platform/db"
	"github.com/dentaldesk/dental/pkg/validation"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const treatmentCols = `id, patient_id, doctor_id, procedure, COALESCE(procedure_other, ''),
	tooth_number, COALESCE(diagnosis, ''), COALESCE(notes, ''),
	to_char(treatment_date, 'YYYY-MM-DD'), created_at, updated_at`

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment
	var tooth *int16
	err := row.Scan(&t.ID, &t.PatientID, &t.DoctorID, &t.Procedure, &t.ProcedureOther,
		&tooth, &t.Diagnosis, &t.Notes, &t.TreatmentDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if tooth != nil {
		n := int(*tooth)
		t.ToothNumber = &n
	}
	return &t, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *repoPG) Create(ctx context.Context, t *Treatment) error {
	t.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatments (id, patient_id, doctor_id, procedure, procedure_other,
			tooth_number, diagnosis, notes, treatment_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date)
		RETURNING created_at, updated_at`,
		t.ID, t.PatientID, t.DoctorID, t.Procedure, nullable(t.ProcedureOther),
		t.ToothNumber, nullable(t.Diagnosis), nullable(t.Notes), t.TreatmentDate,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, patientID, id uuid.UUID) (*Treatment, error) {
	return scanTreatment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+treatmentCols+` FROM treatments WHERE id = $1 AND patient_id = $2`, id, patientID))
}

func (r *repoPG) Update(ctx context.Context, t *Treatment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE treatments SET doctor_id=$3, procedure=$4, procedure_other=$5, tooth_number=$6,
			diagnosis=$7, notes=$8, treatment_date=$9::date, updated_at=NOW()
		WHERE id = $1 AND patient_id = $2
		RETURNING created_at, updated_at`,
		t.ID, t.PatientID, t.DoctorID, t.Procedure, nullable(t.ProcedureOther), t.ToothNumber,
		nullable(t.Diagnosis), nullable(t.Notes), t.TreatmentDate,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return mapErr(err)
}

func (r *repoPG) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM treatments WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Treatment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+treatmentCols+` FROM treatments
		WHERE patient_id = $1 ORDER BY treatment_date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Treatment
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// mapErr maps foreign key violations on patient_id and doctor_id.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23503" {
		return err
	}
	if pgErr.ConstraintName == "treatments_doctor_id_fkey" {
		return validation.Errors{"doctor_id": "unknown doctor"}
	}
	return ErrPatientNotFound
}
