package dentalchart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/internal/domain/clinic"
	"github.com/dentaldesk/dental/internal/domain/profile"
	"github.com/dentaldesk/dental/internal/domain/treatment"
)

type ProfileReader interface {
	Get(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
}

type ClinicReader interface {
	Get(ctx context.Context) (*clinic.Info, error)
}

type TreatmentReader interface {
	List(ctx context.Context, patientID uuid.UUID) ([]*treatment.Treatment, error)
	ByTooth(ctx context.Context, patientID uuid.UUID, tooth int) ([]*treatment.Treatment, error)
}

// View is a chart together with the patient it belongs to.
type View struct {
	Patient   profile.Summary `json:"patient"`
	Chart     *Chart          `json:"chart"`
	Saved     bool            `json:"saved"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

type Service struct {
	repo       Repository
	profiles   ProfileReader
	clinic     ClinicReader
	treatments TreatmentReader
	now        func() time.Time
}

func NewService(repo Repository, profiles ProfileReader, clinic ClinicReader, treatments TreatmentReader) *Service {
	return &Service{repo: repo, profiles: profiles, clinic: clinic, treatments: treatments, now: time.Now}
}

// load returns the stored chart or, when none exists yet, empty defaults.
func (s *Service) load(ctx context.Context, patientID uuid.UUID) (*Record, bool, error) {
	rec, err := s.repo.Get(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return &Record{PatientID: patientID, Chart: NewChart()}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rec.Chart.Normalize()
	return rec, true, nil
}

func (s *Service) Get(ctx context.Context, patientID uuid.UUID) (*View, error) {
	p, err := s.profiles.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	rec, saved, err := s.load(ctx, patientID)
	if err != nil {
		return nil, err
	}
	v := &View{Patient: p.Summary(), Chart: rec.Chart, Saved: saved}
	if saved {
		v.UpdatedAt = &rec.UpdatedAt
	}
	return v, nil
}

// Save replaces the whole chart. An invalid chart leaves the stored one
// untouched.
func (s *Service) Save(ctx context.Context, patientID uuid.UUID, chart *Chart, actor *uuid.UUID) (*Record, error) {
	if _, err := s.profiles.Get(ctx, patientID); err != nil {
		return nil, err
	}
	if chart == nil {
		chart = &Chart{}
	}
	chart.Normalize()
	if err := chart.Validate(); err != nil {
		return nil, err
	}
	rec := &Record{PatientID: patientID, Chart: chart, CreatedBy: actor}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) update(ctx context.Context, patientID uuid.UUID, actor *uuid.UUID, mutate func(*Chart) error) (*Record, error) {
	if _, err := s.profiles.Get(ctx, patientID); err != nil {
		return nil, err
	}
	rec, saved, err := s.load(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if err := mutate(rec.Chart); err != nil {
		return nil, err
	}
	if !saved {
		rec.CreatedBy = actor
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) SetTooth(ctx context.Context, patientID uuid.UUID, tooth int, symbol string, actor *uuid.UUID) (*Record, error) {
	return s.update(ctx, patientID, actor, func(c *Chart) error {
		return c.SetTooth(tooth, symbol)
	})
}

func (s *Service) SetFlags(ctx context.Context, patientID uuid.UUID, section string, flags map[string]bool, actor *uuid.UUID) (*Record, error) {
	return s.update(ctx, patientID, actor, func(c *Chart) error {
		return c.SetFlags(section, flags)
	})
}

// ToothTreatments is the detail panel for one tooth: its symbol and the
// treatments recorded against it, newest first.
func (s *Service) ToothTreatments(ctx context.Context, patientID uuid.UUID, tooth int) (*ToothDetail, error) {
	if tooth < MinTooth || tooth > MaxTooth {
		return nil, fmt.Errorf("tooth %d: %w", tooth, errToothRange)
	}
	rec, _, err := s.load(ctx, patientID)
	if err != nil {
		return nil, err
	}
	list, err := s.treatments.ByTooth(ctx, patientID, tooth)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*treatment.Treatment{}
	}
	sym := rec.Chart.Symbol(tooth)
	return &ToothDetail{Tooth: tooth, Symbol: sym, Label: legendLabels[sym], Treatments: list}, nil
}

type ToothDetail struct {
	Tooth      int                    `json:"tooth"`
	Symbol     string                 `json:"symbol"`
	Label      string                 `json:"label,omitempty"`
	Treatments []*treatment.Treatment `json:"treatments"`
}

// Print renders the chart as a standalone HTML page.
func (s *Service) Print(ctx context.Context, patientID uuid.UUID) ([]byte, error) {
	v, err := s.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	info, err := s.clinic.Get(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.treatments.List(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, newPrintData(info, v, items, s.now())); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
