package clinic

import (
	"net/http"

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

// RegisterRoutes mounts GET /clinic on the public group and PUT /clinic,
// admin only, on the authenticated group.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.GET("/clinic", h.Get)
	api.PUT("/clinic", h.Update, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Get(c echo.Context) error {
	info, err := h.svc.Get(c.Request().Context())
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) Update(c echo.Context) error {
	var info Info
	if err := c.Bind(&info); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Update(c.Request().Context(), &info); err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, info)
}
