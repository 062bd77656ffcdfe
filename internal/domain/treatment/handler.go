package treatment

import (
	"fmt"
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
	patient := api.Group("/patients/:patientId/treatments", auth.RequirePatientAccess("patientId"))
	patient.GET("", h.List)
	patient.GET("/by-tooth", h.ByTooth)
	patient.GET("/export", h.Export)
	patient.GET("/:id", h.Get)

	staff := patient.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleStaff))
	staff.POST("", h.Create)
	staff.PUT("/:id", h.Update)
	staff.DELETE("/:id", h.Delete)
}

func patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func ids(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	pid, err := patientID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return pid, id, nil
}

// defaultDoctor credits the signed-in dentist when the form names nobody.
func defaultDoctor(c echo.Context, t *Treatment) {
	if t.DoctorID != nil {
		return
	}
	ctx := c.Request().Context()
	for _, r := range auth.RolesFromContext(ctx) {
		if r == auth.RoleDentist {
			if uid, err := uuid.Parse(auth.UserIDFromContext(ctx)); err == nil {
				t.DoctorID = &uid
			}
			return
		}
	}
}

func (h *Handler) List(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), pid)
	if err != nil {
		return apierror.From(err)
	}
	if items == nil {
		items = []*Treatment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) ByTooth(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if raw := c.QueryParam("tooth"); raw != "" {
		tooth, err := strconv.Atoi(raw)
		if err != nil || tooth < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid tooth")
		}
		list, err := h.svc.ByTooth(ctx, pid, tooth)
		if err != nil {
			return apierror.From(err)
		}
		if list == nil {
			list = []*Treatment{}
		}
		return c.JSON(http.StatusOK, list)
	}
	items, err := h.svc.List(ctx, pid)
	if err != nil {
		return apierror.From(err)
	}
	groups := make(map[string][]*Treatment)
	for tooth, list := range GroupByTooth(items) {
		groups[strconv.Itoa(tooth)] = list
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) Export(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), pid)
	if err != nil {
		return apierror.From(err)
	}
	data, err := Export(items)
	if err != nil {
		return apierror.From(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="treatments-%s.xlsx"`, pid))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handler) Get(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), pid, id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Create(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	var t Treatment
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defaultDoctor(c, &t)
	if err := h.svc.Create(c.Request().Context(), pid, &t); err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Update(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	var t Treatment
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defaultDoctor(c, &t)
	if err := h.svc.Update(c.Request().Context(), pid, id, &t); err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Delete(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	confirmed, _ := strconv.ParseBool(c.QueryParam("confirm"))
	if err := h.svc.Delete(c.Request().Context(), pid, id, confirmed); err != nil {
		return apierror.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}
