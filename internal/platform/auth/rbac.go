package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Staff roles. Admin implicitly passes every role check.
const (
	RoleAdmin        = "admin"
	RoleVeterinarian = "veterinarian"
	RoleTechnician   = "technician"
	RoleReceptionist = "receptionist"
)

// ValidRoles maps every assignable staff role.
var ValidRoles = map[string]bool{
	RoleAdmin:        true,
	RoleVeterinarian: true,
	RoleTechnician:   true,
	RoleReceptionist: true,
}

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
