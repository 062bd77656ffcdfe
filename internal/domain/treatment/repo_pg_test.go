package treatment

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dentaldesk/dental/pkg/apierror"
	"github.com/dentaldesk/dental/pkg/validation"
)

func TestMapErr_MissingPatientIsNotFound(t *testing.T) {
	err := mapErr(&pgconn.PgError{Code: "23503", ConstraintName: "treatments_patient_id_fkey"})
	if !errors.Is(err, ErrPatientNotFound) || !errors.Is(err, apierror.ErrNotFound) {
		t.Fatalf("got %v, want patient not found", err)
	}
}

func TestMapErr_UnknownDoctorIsFieldError(t *testing.T) {
	err := mapErr(&pgconn.PgError{Code: "23503", ConstraintName: "treatments_doctor_id_fkey"})
	var verr validation.Errors
	if !errors.As(err, &verr) || verr["doctor_id"] == "" {
		t.Fatalf("got %v, want doctor_id field error", err)
	}
}

func TestMapErr_PassesOtherErrorsThrough(t *testing.T) {
	other := &pgconn.PgError{Code: "23505"}
	if got := mapErr(other); got != error(other) {
		t.Errorf("got %v, want unchanged", got)
	}
	if mapErr(nil) != nil {
		t.Error("nil should stay nil")
	}
}
