package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dental/internal/platform/auth"
)

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	svc, repo := newTestService()
	return NewHandler(svc), repo, echo.New()
}

func withUser(req *http.Request, id uuid.UUID, role string) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), id.String(), []string{role}))
}

func TestHandler_GetOwn(t *testing.T) {
	h, repo, e := newTestHandler()
	p := &Profile{FullName: "Ana", Email: "a@b.co", Role: "patient"}
	_ = repo.Create(context.Background(), p)

	req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), p.ID, auth.RolePatient)
	rec := httptest.NewRecorder()
	if err := h.GetOwn(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Profile
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ID != p.ID {
		t.Errorf("expected own profile, got %s", got.ID)
	}
}

func TestHandler_GetOwn_NoUser(t *testing.T) {
	h, _, e := newTestHandler()
	err := h.GetOwn(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_UpdateOwn_Validation(t *testing.T) {
	h, repo, e := newTestHandler()
	p := &Profile{FullName: "Ana", Email: "a@b.co", Role: "patient"}
	_ = repo.Create(context.Background(), p)

	body := `{"full_name":"Ana","email":"not-an-email","phone":"123"}`
	req := withUser(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), p.ID, auth.RolePatient)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.UpdateOwn(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestHandler_Create_StaffCannotCreateStaff(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"full_name":"New Staff","email":"n@c.co","role":"dentist"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), uuid.New(), auth.RoleStaff)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestHandler_Create_Conflict(t *testing.T) {
	h, repo, e := newTestHandler()
	_ = repo.Create(context.Background(), &Profile{FullName: "Ana", Email: "a@b.co", Role: "patient"})

	body := `{"full_name":"Other Ana","email":"a@b.co"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), uuid.New(), auth.RoleStaff)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_List_FilterRole(t *testing.T) {
	h, repo, e := newTestHandler()
	ctx := context.Background()
	_ = repo.Create(ctx, &Profile{FullName: "Pat", Email: "p@c.co", Role: "patient"})
	_ = repo.Create(ctx, &Profile{FullName: "Doc", Email: "d@c.co", Role: "dentist"})

	req := httptest.NewRequest(http.MethodGet, "/?role=patient", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Profile `json:"data"`
		Total int       `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].FullName != "Pat" {
		t.Errorf("unexpected result %+v", resp)
	}
}

func TestHandler_Get_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	if err := h.Get(c); err == nil {
		t.Error("expected error for invalid id")
	}
}
