package dentalchart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dental/internal/domain/clinic"
	"github.com/dentaldesk/dental/internal/domain/profile"
	"github.com/dentaldesk/dental/internal/domain/treatment"
	"github.com/dentaldesk/dental/internal/platform/auth"
)

type mockRepo struct {
	records map[uuid.UUID]*Record
	saves   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) Get(_ context.Context, patientID uuid.UUID) (*Record, error) {
	rec, ok := m.records[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	raw, _ := json.Marshal(rec.Chart)
	cp.Chart = &Chart{}
	_ = json.Unmarshal(raw, cp.Chart)
	return &cp, nil
}

func (m *mockRepo) Save(_ context.Context, rec *Record) error {
	m.saves++
	if old, ok := m.records[rec.PatientID]; ok {
		rec.CreatedBy = old.CreatedBy
	}
	rec.UpdatedAt = time.Now()
	cp := *rec
	m.records[rec.PatientID] = &cp
	return nil
}

type stubProfiles map[uuid.UUID]*profile.Profile

func (s stubProfiles) Get(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, ok := s[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return p, nil
}

type stubClinic struct{}

func (stubClinic) Get(context.Context) (*clinic.Info, error) {
	return &clinic.Info{Name: "Smile Dental <Clinic>", Address: "12 Main St"}, nil
}

type stubTreatments []*treatment.Treatment

func (s stubTreatments) List(_ context.Context, patientID uuid.UUID) ([]*treatment.Treatment, error) {
	var out []*treatment.Treatment
	for _, t := range s {
		if t.PatientID == patientID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s stubTreatments) ByTooth(ctx context.Context, patientID uuid.UUID, tooth int) ([]*treatment.Treatment, error) {
	items, _ := s.List(ctx, patientID)
	return treatment.GroupByTooth(items)[tooth], nil
}

func newTestService(tr ...*treatment.Treatment) (*Service, *mockRepo, uuid.UUID) {
	pid := uuid.New()
	profiles := stubProfiles{pid: {ID: pid, FullName: "Juan Dela Cruz", Email: "juan@example.com", Role: "patient"}}
	repo := newMockRepo()
	svc := NewService(repo, profiles, stubClinic{}, stubTreatments(tr))
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) }
	return svc, repo, pid
}

func TestGet_DefaultsBeforeFirstSave(t *testing.T) {
	svc, _, pid := newTestService()
	v, err := svc.Get(context.Background(), pid)
	if err != nil {
		t.Fatal(err)
	}
	if v.Saved || v.UpdatedAt != nil {
		t.Error("unsaved chart should not report a save time")
	}
	if v.Patient.FullName != "Juan Dela Cruz" {
		t.Errorf("unexpected patient summary %+v", v.Patient)
	}
	if len(v.Chart.TMD) != len(TMDKeys) {
		t.Error("defaults should include every flag")
	}
}

func TestGet_UnknownPatient(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Get(context.Background(), uuid.New()); !errors.Is(err, profile.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSave_InvalidLeavesStoredChart(t *testing.T) {
	svc, repo, pid := newTestService()
	ctx := context.Background()
	good := &Chart{Teeth: map[string]Tooth{"3": {"D"}}}
	if _, err := svc.Save(ctx, pid, good, nil); err != nil {
		t.Fatal(err)
	}

	bad := &Chart{Teeth: map[string]Tooth{"3": {"A"}, "40": {"A"}}}
	if _, err := svc.Save(ctx, pid, bad, nil); err == nil {
		t.Fatal("expected validation error")
	}
	if repo.saves != 1 {
		t.Errorf("expected 1 save, got %d", repo.saves)
	}
	if repo.records[pid].Chart.Symbol(3) != "D" {
		t.Error("stored chart changed after failed save")
	}
}

func TestSetTooth_UpsertsAndKeepsCreator(t *testing.T) {
	svc, repo, pid := newTestService()
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	if _, err := svc.SetTooth(ctx, pid, 1, "M", &first); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetTooth(ctx, pid, 32, "X", &second); err != nil {
		t.Fatal(err)
	}
	rec := repo.records[pid]
	if rec.Chart.Symbol(1) != "M" || rec.Chart.Symbol(32) != "X" {
		t.Errorf("unexpected teeth %v", rec.Chart.Teeth)
	}
	if rec.CreatedBy == nil || *rec.CreatedBy != first {
		t.Error("creator should be the first editor")
	}

	if _, err := svc.SetTooth(ctx, pid, 32, "", &second); err != nil {
		t.Fatal(err)
	}
	if repo.records[pid].Chart.Symbol(32) != "" {
		t.Error("tooth 32 should be cleared")
	}
}

func TestSetFlags_Service(t *testing.T) {
	svc, repo, pid := newTestService()
	_, err := svc.SetFlags(context.Background(), pid, SectionMedicalConditions, map[string]bool{"diabetes": true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !repo.records[pid].Chart.MedicalConditions["diabetes"] {
		t.Error("flag not persisted")
	}
}

func TestToothTreatments(t *testing.T) {
	tooth := 14
	svc, _, pid := newTestService()
	svc.treatments = stubTreatments{
		{PatientID: pid, Procedure: "Composite Filling", ToothNumber: &tooth, TreatmentDate: "2024-05-01"},
		{PatientID: pid, Procedure: "Consultation", TreatmentDate: "2024-05-02"},
	}
	_, _ = svc.SetTooth(context.Background(), pid, 14, "C", nil)

	d, err := svc.ToothTreatments(context.Background(), pid, 14)
	if err != nil {
		t.Fatal(err)
	}
	if d.Symbol != "C" || d.Label != "Composite Filling" || len(d.Treatments) != 1 {
		t.Errorf("unexpected detail %+v", d)
	}

	d, err = svc.ToothTreatments(context.Background(), pid, 2)
	if err != nil {
		t.Fatal(err)
	}
	if d.Treatments == nil || len(d.Treatments) != 0 {
		t.Error("tooth without history should return an empty list")
	}
}

func TestPrint(t *testing.T) {
	svc, _, pid := newTestService()
	ctx := context.Background()
	_, _ = svc.SetTooth(ctx, pid, 5, "J", nil)
	_, _ = svc.SetFlags(ctx, pid, SectionTMD, map[string]bool{"clicking": true}, nil)

	page, err := svc.Print(ctx, pid)
	if err != nil {
		t.Fatal(err)
	}
	html := string(page)
	for _, want := range []string{"Juan Dela Cruz", "Smile Dental &lt;Clinic&gt;", "Jacket Crown", "Clicking", "Printed 2024-06-15 09:00"} {
		if !strings.Contains(html, want) {
			t.Errorf("printout missing %q", want)
		}
	}
}

func TestHandler_PatientCannotEdit(t *testing.T) {
	svc, _, pid := newTestService()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/patients/"+pid.String()+"/dental-chart/teeth/3", strings.NewReader(`{"symbol":"D"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithUser(req.Context(), pid.String(), []string{auth.RolePatient}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+pid.String()+"/dental-chart", nil)
	req = req.WithContext(auth.WithUser(req.Context(), pid.String(), []string{auth.RolePatient}))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for own chart, got %d", rec.Code)
	}
}

func TestHandler_SetTooth_BadTooth(t *testing.T) {
	svc, _, pid := newTestService()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/patients/"+pid.String()+"/dental-chart/teeth/33", strings.NewReader(`{"symbol":"D"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithUser(req.Context(), uuid.NewString(), []string{auth.RoleDentist}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
