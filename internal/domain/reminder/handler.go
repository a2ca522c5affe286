package reminder

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetpms/vetpms/internal/platform/auth"
	"github.com/vetpms/vetpms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reminders", h.List)
	api.GET("/reminders/due-today", h.DueToday)
	api.GET("/reminders/:id", h.Get)
	api.POST("/reminders", h.Create)
	api.POST("/reminders/:id/complete", h.Complete)
	api.POST("/reminders/:id/dismiss", h.Dismiss)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrResolved):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *Handler) Create(c echo.Context) error {
	var r Reminder
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &r); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{
		Type:   c.QueryParam("type"),
		Status: c.QueryParam("status"),
	}
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		filter.PatientID = id
	}
	rems, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rems, total, pg.Limit, pg.Offset))
}

func (h *Handler) DueToday(c echo.Context) error {
	rems, err := h.svc.DueToday(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if rems == nil {
		rems = []*Reminder{}
	}
	return c.JSON(http.StatusOK, rems)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.resolve(c, h.svc.Complete)
}

func (h *Handler) Dismiss(c echo.Context) error {
	return h.resolve(c, h.svc.Dismiss)
}

func (h *Handler) resolve(c echo.Context, fn func(ctx context.Context, id uuid.UUID, resolvedBy *uuid.UUID) (*Reminder, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var resolvedBy *uuid.UUID
	if staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		resolvedBy = &staffID
	}
	r, err := fn(c.Request().Context(), id, resolvedBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}
