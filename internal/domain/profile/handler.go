package profile

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dental/internal/platform/auth"
	"github.com/dentaldesk/dental/pkg/apierror"
	"github.com/dentaldesk/dental/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me/profile", h.GetOwn)
	api.PUT("/me/profile", h.UpdateOwn)

	staff := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleStaff))
	staff.GET("/profiles", h.List)
	staff.POST("/profiles", h.Create)
	staff.GET("/profiles/:id", h.Get)
}

// CurrentUserID parses the caller's id from the request context.
func CurrentUserID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "no signed-in user")
	}
	return id, nil
}

func (h *Handler) GetOwn(c echo.Context) error {
	id, err := CurrentUserID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateOwn(c echo.Context) error {
	id, err := CurrentUserID(c)
	if err != nil {
		return err
	}
	var form Profile
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateOwn(c.Request().Context(), id, &form)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Create(c echo.Context) error {
	var p Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if p.Role != "" && p.Role != auth.RolePatient && !auth.HasAnyRole(ctx, auth.RoleAdmin) {
		return echo.NewHTTPError(http.StatusForbidden, "only admins may create staff profiles")
	}
	p.ID = uuid.Nil
	if err := h.svc.Create(ctx, &p); err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := SearchParams{
		Role:  strings.ToLower(c.QueryParam("role")),
		Query: strings.TrimSpace(c.QueryParam("q")),
	}
	if params.Role != "" && !IsValidRole(params.Role) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
