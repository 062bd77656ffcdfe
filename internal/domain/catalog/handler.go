package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dental/internal/platform/auth"
	"github.com/dentaldesk/dental/pkg/apierror"
	"github.com/dentaldesk/dental/pkg/pagination"
)

type Handler struct {
	catalog *Catalog
}

func NewHandler(c *Catalog) *Handler {
	return &Handler{catalog: c}
}

// RegisterRoutes mounts the catalog on the public group; staff callers
// that also pass a token can ask for inactive entries.
func (h *Handler) RegisterRoutes(public *echo.Group) {
	public.GET("/services", h.List)
	public.GET("/services/categories", h.Categories)
	public.GET("/services/:id", h.Get)
}

func includeInactive(c echo.Context) bool {
	want, _ := strconv.ParseBool(c.QueryParam("include_inactive"))
	return want && auth.IsStaff(c.Request().Context())
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Category:        strings.TrimSpace(c.QueryParam("category")),
		Query:           strings.TrimSpace(c.QueryParam("q")),
		IncludeInactive: includeInactive(c),
	}
	items, total, err := h.catalog.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	svc, err := h.catalog.Get(c.Request().Context(), id, includeInactive(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, svc)
}

func (h *Handler) Categories(c echo.Context) error {
	cats, err := h.catalog.Categories(c.Request().Context(), includeInactive(c))
	if err != nil {
		return apierror.From(err)
	}
	if cats == nil {
		cats = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"categories": cats})
}
