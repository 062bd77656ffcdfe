package patientfile

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dental/internal/platform/auth"
	"github.com/dentaldesk/dental/pkg/apierror"
)

// RetrievalMethodHeader names the chain step that produced the bytes.
const RetrievalMethodHeader = "X-Retrieval-Method"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts file routes. Patients manage their own files;
// staff manage anyone's.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients/:patientId/files", auth.RequirePatientAccess("patientId"))
	g.GET("", h.List)
	g.POST("", h.Upload)
	g.GET("/:id", h.Get)
	g.GET("/:id/content", h.Content)
	g.GET("/:id/diagnostics", h.Diagnostics)
	g.DELETE("/:id", h.Delete)
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
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid file id")
	}
	return pid, id, nil
}

func (h *Handler) List(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	files, err := h.svc.List(c.Request().Context(), pid)
	if err != nil {
		return apierror.From(err)
	}
	if files == nil {
		files = []*File{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": files, "total": len(files)})
}

func (h *Handler) Upload(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
	}

	var actor *uuid.UUID
	if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		actor = &uid
	}
	res, err := h.svc.Upload(c.Request().Context(), pid, fh.Filename, fh.Header.Get(echo.HeaderContentType), data, actor)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	f, err := h.svc.Get(c.Request().Context(), pid, id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, f)
}

// Content streams the file bytes. With ?download=true the browser is told
// to save rather than preview.
func (h *Handler) Content(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Retrieve(c.Request().Context(), pid, id)
	if errors.Is(err, ErrRetrievalFailed) {
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"message":  err.Error(),
			"attempts": r.Attempts,
		})
	}
	if err != nil {
		return apierror.From(err)
	}

	disposition := "inline"
	if c.QueryParam("download") == "true" {
		disposition = "attachment"
	}
	hdr := c.Response().Header()
	hdr.Set(RetrievalMethodHeader, r.Method)
	hdr.Set(echo.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, SanitizeName(r.FileName)))
	return c.Blob(http.StatusOK, r.ContentType, r.Data)
}

func (h *Handler) Diagnostics(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Diagnose(c.Request().Context(), pid, id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Delete(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), pid, id); err != nil {
		return apierror.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}
