package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dental/internal/domain/profile"
	"github.com/dentaldesk/dental/pkg/apierror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	if h.svc.LoginEnabled() {
		public.POST("/auth/login", h.Login)
		public.POST("/auth/refresh", h.Refresh)
	}
	api.PUT("/me/password", h.ChangePassword)
}

func mapAuthErr(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrLoginDisabled):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return apierror.From(err)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}
	sess, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return mapAuthErr(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}
	sess, err := h.svc.Refresh(c.Request().Context(), req.Token)
	if err != nil {
		return mapAuthErr(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	uid, err := profile.CurrentUserID(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ChangePassword(c.Request().Context(), uid, req); err != nil {
		return mapAuthErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}
