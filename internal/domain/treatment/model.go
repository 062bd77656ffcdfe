package treatment

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/pkg/validation"
)

const (
	DateLayout     = "2006-01-02"
	MaxNotesLen    = 500
	ProcedureOther = "Other"
)

// Procedures is the list offered on the treatment form.
var Procedures = []string{
	"Consultation",
	"Oral Prophylaxis",
	"Scaling and Root Planing",
	"Fluoride Application",
	"Pit and Fissure Sealant",
	"Composite Filling",
	"Amalgam Filling",
	"Glass Ionomer Filling",
	"Temporary Filling",
	"Tooth Extraction",
	"Surgical Extraction",
	"Root Canal Treatment",
	"Jacket Crown",
	"Fixed Bridge",
	"Complete Denture",
	"Partial Denture",
	"Dental Implant",
	"Orthodontic Adjustment",
	"Teeth Whitening",
	"Dental X-Ray",
	ProcedureOther,
}

var knownProcedures = func() map[string]bool {
	m := make(map[string]bool, len(Procedures))
	for _, p := range Procedures {
		m[p] = true
	}
	return m
}()

type Treatment struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	DoctorID       *uuid.UUID `json:"doctor_id,omitempty"`
	Procedure      string     `json:"procedure"`
	ProcedureOther string     `json:"procedure_other,omitempty"`
	ToothNumber    *int       `json:"tooth_number,omitempty"`
	Diagnosis      string     `json:"diagnosis"`
	Notes          string     `json:"notes"`
	TreatmentDate  string     `json:"treatment_date"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DisplayProcedure is the free text for "Other", the procedure name otherwise.
func (t *Treatment) DisplayProcedure() string {
	if t.Procedure == ProcedureOther && t.ProcedureOther != "" {
		return t.ProcedureOther
	}
	return t.Procedure
}

func (t *Treatment) Normalize() {
	t.Procedure = strings.TrimSpace(t.Procedure)
	t.ProcedureOther = strings.TrimSpace(t.ProcedureOther)
	t.Diagnosis = strings.TrimSpace(t.Diagnosis)
	t.Notes = strings.TrimSpace(t.Notes)
	t.TreatmentDate = strings.TrimSpace(t.TreatmentDate)
	if t.Procedure != ProcedureOther {
		t.ProcedureOther = ""
	}
}

// Validate checks the form. today is the current clinic-local time; a
// treatment dated today is accepted.
func (t *Treatment) Validate(today time.Time) error {
	errs := validation.Errors{}
	switch {
	case t.Procedure == "":
		errs.Add("procedure", "procedure is required")
	case !knownProcedures[t.Procedure]:
		errs.Add("procedure", "unknown procedure")
	case t.Procedure == ProcedureOther && t.ProcedureOther == "":
		errs.Add("procedure_other", "describe the procedure")
	}
	if t.ToothNumber != nil && (*t.ToothNumber < 1 || *t.ToothNumber > 32) {
		errs.Add("tooth_number", "tooth number must be between 1 and 32")
	}
	if len([]rune(t.Notes)) > MaxNotesLen {
		errs.Add("notes", "notes must be at most 500 characters")
	}
	if t.TreatmentDate == "" {
		errs.Add("treatment_date", "treatment date is required")
	} else if d, err := time.Parse(DateLayout, t.TreatmentDate); err != nil {
		errs.Add("treatment_date", "treatment date must be a YYYY-MM-DD date")
	} else {
		y, m, day := today.Date()
		if d.After(time.Date(y, m, day, 0, 0, 0, 0, time.UTC)) {
			errs.Add("treatment_date", "treatment date cannot be in the future")
		}
	}
	return errs.Err()
}

// SortNewestFirst orders by treatment date, then creation time, descending.
func SortNewestFirst(items []*Treatment) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].TreatmentDate != items[j].TreatmentDate {
			return items[i].TreatmentDate > items[j].TreatmentDate
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// GroupByTooth buckets treatments by tooth number; records without a tooth
// go to key 0. Input order is kept within each bucket.
func GroupByTooth(items []*Treatment) map[int][]*Treatment {
	out := make(map[int][]*Treatment)
	for _, t := range items {
		k := 0
		if t.ToothNumber != nil {
			k = *t.ToothNumber
		}
		out[k] = append(out[k], t)
	}
	return out
}
