package queue

import (
	"context"
	"net/http"

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

// RegisterRoutes mounts the queue. Any signed-in user may view it and a
// patient may join it; calling and finishing entries is staff work.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/queue", h.Snapshot)
	api.POST("/queue", h.Enqueue)
	api.GET("/queue/me", h.Mine)

	staff := api.Group("/queue", auth.RequireRole(auth.RoleDentist, auth.RoleStaff))
	staff.GET("/activity", h.Activity)
	staff.POST("/call-next", h.CallNext)
	staff.POST("/:id/call", h.Call)
	staff.POST("/:id/complete", h.Complete)
	staff.POST("/:id/cancel", h.Cancel)
	staff.DELETE("/:id", h.Remove)
}

type enqueueRequest struct {
	PatientID string `json:"patient_id"`
}

func entryID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid queue entry id")
	}
	return id, nil
}

func actor(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func (h *Handler) Snapshot(c echo.Context) error {
	snap, err := h.svc.Snapshot(c.Request().Context())
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// Enqueue adds a patient. Patients may only queue themselves and may omit
// patient_id.
func (h *Handler) Enqueue(c echo.Context) error {
	var req enqueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if req.PatientID == "" && !auth.IsStaff(ctx) {
		req.PatientID = auth.UserIDFromContext(ctx)
	}
	pid, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	if !auth.CanAccessPatient(ctx, pid.String()) {
		return echo.NewHTTPError(http.StatusForbidden, "patients can only queue themselves")
	}
	e, err := h.svc.Enqueue(ctx, pid, actor(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) Mine(c echo.Context) error {
	pid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	e, ahead, err := h.svc.Position(c.Request().Context(), pid)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"entry": e, "ahead": ahead})
}

func (h *Handler) Activity(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"data": h.svc.Activity(c.Request().Context())})
}

func (h *Handler) CallNext(c echo.Context) error {
	e, err := h.svc.CallNext(c.Request().Context(), actor(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) transition(c echo.Context, fn func(context.Context, uuid.UUID, string) (*Entry, error)) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	e, err := fn(c.Request().Context(), id, actor(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Call(c echo.Context) error     { return h.transition(c, h.svc.CallSpecific) }
func (h *Handler) Complete(c echo.Context) error { return h.transition(c, h.svc.Complete) }
func (h *Handler) Cancel(c echo.Context) error   { return h.transition(c, h.svc.Cancel) }
func (h *Handler) Remove(c echo.Context) error   { return h.transition(c, h.svc.RemoveFromWaiting) }
