package dentalchart

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dental/internal/platform/auth"
	"github.com/dentaldesk/dental/pkg/apierror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dental-chart/legend", h.Legend)

	g := api.Group("/patients/:patientId/dental-chart", auth.RequirePatientAccess("patientId"))
	g.GET("", h.Get)
	g.GET("/print", h.Print)
	g.GET("/teeth/:tooth/treatments", h.ToothTreatments)

	staff := g.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleStaff))
	staff.PUT("", h.Save)
	staff.PUT("/teeth/:tooth", h.SetTooth)
	staff.PATCH("/flags", h.SetFlags)
}

func patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func toothParam(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("tooth"))
	if err != nil || n < MinTooth || n > MaxTooth {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "tooth must be between 1 and 32")
	}
	return n, nil
}

func actor(c echo.Context) *uuid.UUID {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return nil
	}
	return &id
}

// Legend returns the symbol legend, flag keys and history questions the
// chart form is built from.
func (h *Handler) Legend(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"legend": Legend,
		"sections": map[string][]string{
			SectionMedicalConditions: MedicalConditionKeys,
			SectionConditions:        ConditionKeys,
			SectionApplications:      ApplicationKeys,
			SectionTMD:               TMDKeys,
		},
		"dentalHistory": HistoryQuestions,
	})
}

func (h *Handler) Get(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Get(c.Request().Context(), pid)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Save(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	var chart Chart
	if err := c.Bind(&chart); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Save(c.Request().Context(), pid, &chart, actor(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, rec)
}

type toothRequest struct {
	Symbol string `json:"symbol"`
}

func (h *Handler) SetTooth(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	n, err := toothParam(c)
	if err != nil {
		return err
	}
	var req toothRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.SetTooth(c.Request().Context(), pid, n, req.Symbol, actor(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, rec)
}

type flagsRequest struct {
	Section string          `json:"section"`
	Flags   map[string]bool `json:"flags"`
}

func (h *Handler) SetFlags(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	var req flagsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.SetFlags(c.Request().Context(), pid, req.Section, req.Flags, actor(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ToothTreatments(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	n, err := toothParam(c)
	if err != nil {
		return err
	}
	d, err := h.svc.ToothTreatments(c.Request().Context(), pid, n)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Print(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	page, err := h.svc.Print(c.Request().Context(), pid)
	if err != nil {
		return apierror.From(err)
	}
	return c.HTMLBlob(http.StatusOK, page)
}
