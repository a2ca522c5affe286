package protocol

import (
	"context"
	"errors"
	"net/http"
	"time"

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
	api.GET("/protocols", h.ListProtocols)
	api.GET("/protocols/:id", h.GetProtocol)

	manage := auth.RequireRole(auth.RoleVeterinarian)
	api.POST("/protocols", h.CreateProtocol, manage)
	api.PUT("/protocols/:id", h.UpdateProtocol, manage)
	api.POST("/protocols/:id/deactivate", h.DeactivateProtocol, manage)

	clinical := auth.RequireRole(auth.RoleVeterinarian, auth.RoleTechnician)
	api.GET("/treatment-plans", h.ListPlans)
	api.GET("/treatment-plans/:id", h.GetPlan)
	api.POST("/treatment-plans", h.CreatePlan, clinical)
	api.POST("/treatment-plans/:id/cancel", h.CancelPlan, clinical)
	api.POST("/treatment-plans/:id/steps/:stepId/complete", h.CompleteStep, clinical)
	api.POST("/treatment-plans/:id/steps/:stepId/skip", h.SkipStep, clinical)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPlanNotFound),
		errors.Is(err, ErrStepNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPlanState), errors.Is(err, ErrStepState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *Handler) CreateProtocol(c echo.Context) error {
	var p Protocol
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProtocol(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProtocol(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetProtocol(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProtocols(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ProtocolFilter{
		Species:    c.QueryParam("species"),
		ActiveOnly: c.QueryParam("include_inactive") != "true",
	}
	protos, total, err := h.svc.ListProtocols(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(protos, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateProtocol(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Protocol
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateProtocol(c.Request().Context(), id, &p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeactivateProtocol(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.DeactivateProtocol(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type createPlanRequest struct {
	PatientID  uuid.UUID   `json:"patient_id"`
	ProtocolID *uuid.UUID  `json:"protocol_id,omitempty"`
	Name       string      `json:"name"`
	StartDate  string      `json:"start_date"`
	Steps      []AdHocStep `json:"steps,omitempty"`
}

func (h *Handler) CreatePlan(c echo.Context) error {
	var req createPlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start_date must be YYYY-MM-DD")
	}

	var createdBy *uuid.UUID
	if staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		createdBy = &staffID
	}

	ctx := c.Request().Context()
	var plan *TreatmentPlan
	if req.ProtocolID != nil {
		plan, err = h.svc.CreatePlanFromProtocol(ctx, req.PatientID, *req.ProtocolID, start, createdBy)
	} else {
		plan, err = h.svc.CreateAdHocPlan(ctx, req.PatientID, req.Name, start, req.Steps, createdBy)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, plan)
}

type planResponse struct {
	*TreatmentPlan
	Progress Progress `json:"progress"`
}

func (h *Handler) GetPlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	plan, err := h.svc.GetPlan(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, planResponse{TreatmentPlan: plan, Progress: plan.Progress()})
}

func (h *Handler) ListPlans(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := PlanFilter{Status: c.QueryParam("status")}
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		filter.PatientID = id
	}
	plans, total, err := h.svc.ListPlans(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(plans, total, pg.Limit, pg.Offset))
}

func (h *Handler) CancelPlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	plan, err := h.svc.CancelPlan(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) CompleteStep(c echo.Context) error {
	return h.resolveStep(c, h.svc.CompleteStep)
}

func (h *Handler) SkipStep(c echo.Context) error {
	return h.resolveStep(c, h.svc.SkipStep)
}

func (h *Handler) resolveStep(c echo.Context, fn func(ctx context.Context, planID, stepID uuid.UUID, resolvedBy *uuid.UUID, notes *string) (*TreatmentPlan, error)) error {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	stepID, err := uuid.Parse(c.Param("stepId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid step id")
	}

	var body struct {
		Notes *string `json:"notes,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var resolvedBy *uuid.UUID
	if staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		resolvedBy = &staffID
	}

	plan, err := fn(c.Request().Context(), planID, stepID, resolvedBy, body.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, planResponse{TreatmentPlan: plan, Progress: plan.Progress()})
}
