package inventory

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
	api.GET("/vendors", h.ListVendors)
	api.GET("/vendors/:id", h.GetVendor)
	api.GET("/products", h.ListProducts)
	api.GET("/products/low-stock", h.ListLowStock)
	api.GET("/products/:id", h.GetProduct)
	api.GET("/products/:id/movements", h.ListMovements)
	api.GET("/purchase-orders", h.ListPOs)
	api.GET("/purchase-orders/:id", h.GetPO)

	// Catalog and ordering changes are kept away from the front desk.
	manage := api.Group("", auth.RequireRole(auth.RoleVeterinarian, auth.RoleTechnician))
	manage.POST("/vendors", h.CreateVendor)
	manage.PUT("/vendors/:id", h.UpdateVendor)
	manage.POST("/products", h.CreateProduct)
	manage.PUT("/products/:id", h.UpdateProduct)
	manage.POST("/products/:id/adjustments", h.Adjust)
	manage.POST("/purchase-orders", h.CreatePO)
	manage.POST("/purchase-orders/:id/lines", h.AddPOLine)
	manage.PUT("/purchase-orders/:id/lines/:lineId", h.UpdatePOLine)
	manage.DELETE("/purchase-orders/:id/lines/:lineId", h.RemovePOLine)
	manage.POST("/purchase-orders/:id/submit", h.SubmitPO)
	manage.POST("/purchase-orders/:id/receive", h.ReceivePO)
	manage.POST("/purchase-orders/:id/cancel", h.CancelPO)
	manage.POST("/purchase-orders/:id/close", h.ClosePO)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.DELETE("/products/:id", h.DeleteProduct)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrVendorNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrPONotFound),
		errors.Is(err, ErrPOLineNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateSKU),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrPOState),
		errors.Is(err, ErrProductReferenced):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrOverReceive):
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

// --- vendors ---

func (h *Handler) CreateVendor(c echo.Context) error {
	var v Vendor
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateVendor(c.Request().Context(), &v); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVendor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.GetVendor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateVendor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var v Vendor
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v.ID = id
	if err := h.svc.UpdateVendor(c.Request().Context(), &v); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListVendors(c echo.Context) error {
	pg := pagination.FromContext(c)
	vendors, total, err := h.svc.ListVendors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(vendors, total, pg.Limit, pg.Offset))
}

// --- products ---

func (h *Handler) CreateProduct(c echo.Context) error {
	var p Product
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProduct(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var p Product
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdateProduct(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteProduct(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListProducts(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ProductFilter{
		Category: c.QueryParam("category"),
		Query:    c.QueryParam("q"),
		Active:   c.QueryParam("active"),
	}
	products, total, err := h.svc.ListProducts(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(products, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListLowStock(c echo.Context) error {
	pg := pagination.FromContext(c)
	products, total, err := h.svc.ListLowStock(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(products, total, pg.Limit, pg.Offset))
}

func (h *Handler) Adjust(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Delta  float64 `json:"delta"`
		Reason string  `json:"reason"`
		Note   *string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var actorID *uuid.UUID
	if staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		actorID = &staffID
	}
	if err := h.svc.Adjust(c.Request().Context(), id, body.Delta, body.Reason, body.Note, actorID); err != nil {
		return httpError(err)
	}
	p, err := h.svc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListMovements(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	movements, total, err := h.svc.ListMovements(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(movements, total, pg.Limit, pg.Offset))
}

// --- purchase orders ---

func (h *Handler) CreatePO(c echo.Context) error {
	var po PurchaseOrder
	if err := c.Bind(&po); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePO(c.Request().Context(), &po); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, po)
}

func (h *Handler) GetPO(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	po, err := h.svc.GetPO(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, po)
}

func (h *Handler) ListPOs(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := POFilter{Status: c.QueryParam("status")}
	if raw := c.QueryParam("vendor_id"); raw != "" {
		vendorID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid vendor_id")
		}
		filter.VendorID = vendorID
	}
	pos, total, err := h.svc.ListPOs(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(pos, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddPOLine(c echo.Context) error {
	poID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var l PurchaseOrderLine
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.POID = poID
	if err := h.svc.AddPOLine(c.Request().Context(), &l); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) UpdatePOLine(c echo.Context) error {
	lineID, err := parseID(c, "lineId")
	if err != nil {
		return err
	}
	var l PurchaseOrderLine
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.ID = lineID
	if err := h.svc.UpdatePOLine(c.Request().Context(), &l); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) RemovePOLine(c echo.Context) error {
	lineID, err := parseID(c, "lineId")
	if err != nil {
		return err
	}
	if err := h.svc.RemovePOLine(c.Request().Context(), lineID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SubmitPO(c echo.Context) error {
	return h.poTransition(c, h.svc.SubmitPO)
}

func (h *Handler) CancelPO(c echo.Context) error {
	return h.poTransition(c, h.svc.CancelPO)
}

func (h *Handler) ClosePO(c echo.Context) error {
	return h.poTransition(c, h.svc.ClosePO)
}

func (h *Handler) poTransition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	po, err := fn(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, po)
}

func (h *Handler) ReceivePO(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Receipts []LineReceipt `json:"receipts"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var actorID *uuid.UUID
	if staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		actorID = &staffID
	}
	po, err := h.svc.ReceivePO(c.Request().Context(), id, body.Receipts, actorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, po)
}
