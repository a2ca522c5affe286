package document

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetpms/vetpms/internal/platform/auth"
	"github.com/vetpms/vetpms/internal/platform/blobstore"
	"github.com/vetpms/vetpms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/documents", h.List)
	api.GET("/documents/:id", h.Get)
	api.GET("/documents/:id/download", h.Download)
	api.POST("/documents", h.Upload)
	api.DELETE("/documents/:id", h.Delete, auth.RequireRole(auth.RoleAdmin, auth.RoleVeterinarian))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, blobstore.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, blobstore.ErrTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	default:
		return err
	}
}

// Upload accepts a multipart form: the file part plus title, category and the
// owning patient_id and/or client_id fields.
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file part is required")
	}

	d := Document{
		Title:       c.FormValue("title"),
		Category:    c.FormValue("category"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}
	for field, dst := range map[string]**uuid.UUID{
		"patient_id": &d.PatientID,
		"client_id":  &d.ClientID,
	} {
		if raw := c.FormValue(field); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+field)
			}
			*dst = &id
		}
	}
	if staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		d.UploadedBy = &staffID
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	if err := h.svc.Upload(c.Request().Context(), &d, src); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{Category: c.QueryParam("category")}
	for param, dst := range map[string]*uuid.UUID{
		"patient_id": &filter.PatientID,
		"client_id":  &filter.ClientID,
	} {
		if raw := c.QueryParam(param); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			*dst = id
		}
	}
	docs, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(docs, total, pg.Limit, pg.Offset))
}

func (h *Handler) Download(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, rc, err := h.svc.Download(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", d.FileName))
	return c.Stream(http.StatusOK, d.ContentType, rc)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
