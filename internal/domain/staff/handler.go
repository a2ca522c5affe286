package staff

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vetpms/vetpms/internal/platform/auth"
	"github.com/vetpms/vetpms/pkg/pagination"
)

type Handler struct {
	svc           *Service
	cookieSecret  []byte
	secureCookies bool
}

func NewHandler(svc *Service, cookieSecret []byte, secureCookies bool) *Handler {
	return &Handler{svc: svc, cookieSecret: cookieSecret, secureCookies: secureCookies}
}

// RegisterAuthRoutes mounts the login endpoint on an unauthenticated group.
// The caller is expected to wrap the group in a login rate limiter.
func (h *Handler) RegisterAuthRoutes(public *echo.Group) {
	public.POST("/auth/login", h.Login)
}

// RegisterRoutes mounts session-protected routes. Account management is
// admin-only; every staff member can read their own profile and change their
// own password.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/me", h.Me)
	api.POST("/auth/password", h.ChangePassword)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.GET("/staff", h.List)
	adminGroup.POST("/staff", h.Create)
	adminGroup.GET("/staff/:id", h.Get)
	adminGroup.PUT("/staff/:id", h.Update)
	adminGroup.POST("/staff/:id/password", h.SetPassword)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateEmail):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountDisabled):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return err
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	u, sess, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	cookie := auth.EncodeSessionCookie(sess.ID, h.cookieSecret)
	auth.SetSessionCookie(c, cookie, h.svc.SessionTTL(), h.secureCookies)

	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(auth.SessionCookieName); err == nil {
		if sid, ok := auth.DecodeSessionCookie(cookie.Value, h.cookieSecret); ok {
			_ = h.svc.Logout(c.Request().Context(), sid)
		}
	}
	auth.ClearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ChangePassword(c.Request().Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		return httpError(err)
	}
	auth.ClearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

type createRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u := &User{Email: req.Email, FullName: req.FullName, Role: req.Role}
	if err := h.svc.Create(c.Request().Context(), u, req.Password); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.ID = id
	if err := h.svc.Update(c.Request().Context(), &u); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) SetPassword(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req setPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetPassword(c.Request().Context(), id, req.Password); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
