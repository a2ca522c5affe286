package invoice

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
	api.GET("/invoices", h.List)
	api.POST("/invoices", h.Create)
	api.GET("/invoices/:id", h.Get)
	api.POST("/invoices/:id/items", h.AddItem)
	api.PUT("/invoices/:id/items/:itemId", h.UpdateItem)
	api.DELETE("/invoices/:id/items/:itemId", h.RemoveItem)
	api.POST("/invoices/:id/issue", h.Issue)
	api.POST("/invoices/:id/payments", h.RecordPayment)
	api.POST("/invoices/:id/payments/:paymentId/void", h.VoidPayment)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/invoices/:id/void", h.Void)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrPaymentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvoiceState), errors.Is(err, ErrInsufficientStock):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrOverpayment):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var inv Invoice
	if err := c.Bind(&inv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDraft(c.Request().Context(), &inv); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{Status: c.QueryParam("status")}
	for param, dst := range map[string]*uuid.UUID{
		"client_id": &filter.ClientID,
		"visit_id":  &filter.VisitID,
	} {
		if raw := c.QueryParam(param); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			*dst = id
		}
	}
	invoices, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invoices, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddItem(c echo.Context) error {
	invoiceID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var item Item
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item.InvoiceID = invoiceID
	inv, err := h.svc.AddItem(c.Request().Context(), &item)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	itemID, err := parseID(c, "itemId")
	if err != nil {
		return err
	}
	var item Item
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item.ID = itemID
	inv, err := h.svc.UpdateItem(c.Request().Context(), &item)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) RemoveItem(c echo.Context) error {
	itemID, err := parseID(c, "itemId")
	if err != nil {
		return err
	}
	inv, err := h.svc.RemoveItem(c.Request().Context(), itemID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) Issue(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.svc.Issue(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) RecordPayment(c echo.Context) error {
	invoiceID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var p Payment
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.InvoiceID = invoiceID
	inv, err := h.svc.RecordPayment(c.Request().Context(), &p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) VoidPayment(c echo.Context) error {
	paymentID, err := parseID(c, "paymentId")
	if err != nil {
		return err
	}
	inv, err := h.svc.VoidPayment(c.Request().Context(), paymentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) Void(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.svc.Void(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}
