package portal

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetpms/vetpms/internal/domain/appointment"
	"github.com/vetpms/vetpms/internal/platform/auth"
	"github.com/vetpms/vetpms/pkg/pagination"
)

const inviteTTL = 14 * 24 * time.Hour

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the unauthenticated portal endpoints
// (registration and login). Rate limiting is applied by the caller.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
}

// RegisterPortalRoutes mounts the JWT-protected owner-facing endpoints.
func (h *Handler) RegisterPortalRoutes(g *echo.Group) {
	g.GET("/me", h.Me)
	g.GET("/patients", h.MyPatients)
	g.GET("/patients/:id", h.MyPatient)
	g.GET("/patients/:id/prescriptions", h.MyPrescriptions)
	g.GET("/appointments", h.MyAppointments)
	g.GET("/appointments/:id", h.MyAppointment)
	g.POST("/appointments/:id/cancel", h.CancelAppointment)
	g.GET("/invoices", h.MyInvoices)
	g.GET("/invoices/:id", h.MyInvoice)
	g.POST("/appointment-requests", h.RequestAppointment)
	g.GET("/appointment-requests", h.MyRequests)
}

// RegisterStaffRoutes mounts the staff-side portal management endpoints on
// the cookie-authenticated API group.
func (h *Handler) RegisterStaffRoutes(api *echo.Group) {
	api.POST("/clients/:id/portal-invite", h.IssueInvite)
	api.GET("/portal-requests", h.ListRequests)
	api.POST("/portal-requests/:id/approve", h.ApproveRequest)
	api.POST("/portal-requests/:id/decline", h.DeclineRequest)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrAccountLocked):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrRequestState),
		errors.Is(err, ErrNotCancellable),
		errors.Is(err, appointment.ErrVetConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidInvite),
		errors.Is(err, appointment.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *Handler) Register(c echo.Context) error {
	var req struct {
		InviteCode string `json:"invite_code"`
		Email      string `json:"email"`
		Password   string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Register(c.Request().Context(), req.InviteCode, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, a, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":   token,
		"account": a,
	})
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	a, err := h.svc.Account(ctx, auth.PortalAccountIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	cl, err := h.svc.MyClient(ctx, a.ClientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"account": a,
		"client":  cl,
	})
}

func (h *Handler) MyPatients(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.MyPatients(ctx, auth.PortalClientIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) MyPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	ctx := c.Request().Context()
	p, err := h.svc.MyPatient(ctx, auth.PortalClientIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) MyPrescriptions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	rxs, total, err := h.svc.MyPrescriptions(ctx, auth.PortalClientIDFromContext(ctx), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rxs, total, pg.Limit, pg.Offset))
}

func (h *Handler) MyAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	appts, total, err := h.svc.MyAppointments(ctx, auth.PortalClientIDFromContext(ctx), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

func (h *Handler) MyAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	ctx := c.Request().Context()
	a, err := h.svc.MyAppointment(ctx, auth.PortalClientIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	ctx := c.Request().Context()
	a, err := h.svc.CancelAppointment(ctx, auth.PortalClientIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) MyInvoices(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	invs, total, err := h.svc.MyInvoices(ctx, auth.PortalClientIDFromContext(ctx), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invs, total, pg.Limit, pg.Offset))
}

func (h *Handler) MyInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	ctx := c.Request().Context()
	inv, err := h.svc.MyInvoice(ctx, auth.PortalClientIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) RequestAppointment(c echo.Context) error {
	var req AppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.svc.RequestAppointment(ctx, auth.PortalClientIDFromContext(ctx), &req); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) MyRequests(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	reqs, total, err := h.svc.MyRequests(ctx, auth.PortalClientIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reqs, total, pg.Limit, pg.Offset))
}

func (h *Handler) IssueInvite(c echo.Context) error {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.IssueInvite(c.Request().Context(), clientID, inviteTTL)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) ListRequests(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := RequestFilter{Status: c.QueryParam("status")}
	if raw := c.QueryParam("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid client_id")
		}
		filter.ClientID = id
	}
	reqs, total, err := h.svc.ListRequests(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reqs, total, pg.Limit, pg.Offset))
}

func (h *Handler) ApproveRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		VetID          uuid.UUID `json:"vet_id"`
		Type           string    `json:"type"`
		ScheduledStart time.Time `json:"scheduled_start"`
		ScheduledEnd   time.Time `json:"scheduled_end"`
		Note           *string   `json:"note,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.ApproveRequest(c.Request().Context(), id, body.VetID, body.Type,
		body.ScheduledStart, body.ScheduledEnd, body.Note)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) DeclineRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Note *string `json:"note,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.DeclineRequest(c.Request().Context(), id, body.Note)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}
