package patientfile

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

var ErrNotFound = fmt.Errorf("file %w", apierror.ErrNotFound)

type Repository interface {
	Create(ctx context.Context, f *File) error
	GetByID(ctx context.Context, patientID, id uuid.UUID) (*File, error)
	// ListByPatient returns the patient's files, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*File, error)
	Delete(ctx context.Context, patientID, id uuid.UUID) error
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const fileCols = `id, patient_id, file_name, file_type, file_size, file_path, file_url, uploaded_at, uploaded_by`

func scanFile(row pgx.Row) (*File, error) {
	var f File
	err := row.Scan(&f.ID, &f.PatientID, &f.FileName, &f.FileType, &f.FileSize,
		&f.FilePath, &f.FileURL, &f.UploadedAt, &f.UploadedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &f, err
}

func (r *repoPG) Create(ctx context.Context, f *File) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_files (id, patient_id, file_name, file_type, file_size, file_path, file_url, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING uploaded_at`,
		f.ID, f.PatientID, f.FileName, f.FileType, f.FileSize, f.FilePath, f.FileURL, f.UploadedBy,
	).Scan(&f.UploadedAt)
}

func (r *repoPG) GetByID(ctx context.Context, patientID, id uuid.UUID) (*File, error) {
	return scanFile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+fileCols+` FROM patient_files WHERE id = $1 AND patient_id = $2`, id, patientID))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*File, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+fileCols+` FROM patient_files
		WHERE patient_id = $1 ORDER BY uploaded_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_files WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
