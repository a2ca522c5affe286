package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRoles(roles []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRequireRole_HasRole(t *testing.T) {
	c := requestWithRoles([]string{"veterinarian"})

	called := false
	mw := RequireRole(RoleVeterinarian)
	handler := mw(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestRequireRole_MissingRole(t *testing.T) {
	c := requestWithRoles([]string{"receptionist"})

	mw := RequireRole(RoleVeterinarian)
	handler := mw(func(c echo.Context) error {
		t.Error("handler should not be called")
		return nil
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AdminBypassesAll(t *testing.T) {
	c := requestWithRoles([]string{"admin"})

	called := false
	mw := RequireRole(RoleVeterinarian, RoleTechnician)
	handler := mw(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected admin to pass any role check")
	}
}

func TestRequireRole_AnyOfMultiple(t *testing.T) {
	c := requestWithRoles([]string{"technician"})

	called := false
	mw := RequireRole(RoleVeterinarian, RoleTechnician)
	handler := mw(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected technician to pass a vet-or-tech check")
	}
}

func TestRequireRole_NoRolesInContext(t *testing.T) {
	c := requestWithRoles(nil)

	mw := RequireRole(RoleReceptionist)
	handler := mw(func(c echo.Context) error {
		t.Error("handler should not be called")
		return nil
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRole_ErrorNamesRoles(t *testing.T) {
	c := requestWithRoles([]string{"portal"})

	mw := RequireRole(RoleVeterinarian, RoleReceptionist)
	handler := mw(func(c echo.Context) error { return nil })

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	msg, _ := httpErr.Message.(string)
	if msg != "required role: veterinarian or receptionist" {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestValidRoles(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleVeterinarian, RoleTechnician, RoleReceptionist} {
		if !ValidRoles[role] {
			t.Errorf("expected %s to be a valid role", role)
		}
	}
	if ValidRoles["janitor"] {
		t.Error("unexpected valid role 'janitor'")
	}
}
