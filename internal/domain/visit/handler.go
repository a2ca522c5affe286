package visit

import (
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
	// Clinical records are written by medical staff.
	clinical := api.Group("", auth.RequireRole(auth.RoleVeterinarian, auth.RoleTechnician))
	clinical.POST("/visits", h.Create)
	clinical.PUT("/visits/:id", h.Update)
	clinical.POST("/visits/:id/treatments", h.AddTreatment)
	clinical.DELETE("/visits/:id/treatments/:treatmentId", h.RemoveTreatment)
	clinical.POST("/visits/:id/complete", h.Complete)

	api.GET("/visits", h.List)
	api.GET("/visits/:id", h.Get)
	api.GET("/visits/:id/treatments", h.ListTreatments)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTreatmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrVisitCompleted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *Handler) Create(c echo.Context) error {
	var v Visit
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if v.VetID == uuid.Nil {
		if staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			v.VetID = staffID
		}
	}
	if err := h.svc.Create(c.Request().Context(), &v); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{Status: c.QueryParam("status")}
	for param, dst := range map[string]*uuid.UUID{
		"patient_id":     &filter.PatientID,
		"client_id":      &filter.ClientID,
		"vet_id":         &filter.VetID,
		"appointment_id": &filter.AppointmentID,
	} {
		if raw := c.QueryParam(param); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			*dst = id
		}
	}
	visits, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var v Visit
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v.ID = id
	if err := h.svc.Update(c.Request().Context(), &v); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) AddTreatment(c echo.Context) error {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t Treatment
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.VisitID = visitID
	if t.PerformedBy == nil {
		if staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			t.PerformedBy = &staffID
		}
	}
	if err := h.svc.AddTreatment(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTreatments(c echo.Context) error {
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	treatments, err := h.svc.ListTreatments(c.Request().Context(), visitID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, treatments)
}

func (h *Handler) RemoveTreatment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("treatmentId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.RemoveTreatment(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		CreateInvoice bool `json:"create_invoice"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Complete(c.Request().Context(), id, body.CreateInvoice)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}
