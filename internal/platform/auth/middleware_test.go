package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// memSessionStore is an in-memory SessionStore for middleware tests.
type memSessionStore struct {
	sessions map[uuid.UUID]*Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[uuid.UUID]*Session)}
}

func (m *memSessionStore) Create(ctx context.Context, s *Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessionStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *memSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.sessions, id)
	return nil
}

func (m *memSessionStore) DeleteForStaff(ctx context.Context, staffID uuid.UUID) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if s.StaffID == staffID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if time.Now().After(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func newStaffRequest(t *testing.T, store SessionStore, cookieValue string) (echo.Context, *httptest.ResponseRecorder, echo.HandlerFunc) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	if cookieValue != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookieValue})
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := StaffSession(store, testSecret)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return c, rec, handler
}

func TestStaffSession_ValidSession(t *testing.T) {
	store := newMemSessionStore()
	staffID := uuid.New()
	sess := &Session{
		ID:        uuid.New(),
		StaffID:   staffID,
		Roles:     []string{"veterinarian"},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	store.Create(context.Background(), sess)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.AddCookie(&http.Cookie{
		Name:  SessionCookieName,
		Value: EncodeSessionCookie(sess.ID, testSecret),
	})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := StaffSession(store, testSecret)
	handler := mw(func(c echo.Context) error {
		ctx := c.Request().Context()
		if UserIDFromContext(ctx) != staffID.String() {
			t.Errorf("expected user ID %s in context, got %s", staffID, UserIDFromContext(ctx))
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != "veterinarian" {
			t.Errorf("unexpected roles in context: %v", roles)
		}
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestStaffSession_MissingCookie(t *testing.T) {
	c, _, handler := newStaffRequest(t, newMemSessionStore(), "")

	err := handler(c)
	if err == nil {
		t.Fatal("expected error for missing cookie")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestStaffSession_ForgedCookie(t *testing.T) {
	store := newMemSessionStore()
	// Valid UUID but signed with the wrong secret
	forged := EncodeSessionCookie(uuid.New(), []byte("attacker-secret"))
	c, _, handler := newStaffRequest(t, store, forged)

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for forged cookie, got %v", err)
	}
}

func TestStaffSession_UnknownSession(t *testing.T) {
	store := newMemSessionStore()
	// Properly signed but no matching row in the store
	value := EncodeSessionCookie(uuid.New(), testSecret)
	c, _, handler := newStaffRequest(t, store, value)

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown session, got %v", err)
	}
}

func TestStaffSession_ExpiredSession(t *testing.T) {
	store := newMemSessionStore()
	sess := &Session{
		ID:        uuid.New(),
		StaffID:   uuid.New(),
		Roles:     []string{"admin"},
		CreatedAt: time.Now().Add(-24 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	store.sessions[sess.ID] = sess

	value := EncodeSessionCookie(sess.ID, testSecret)
	c, _, handler := newStaffRequest(t, store, value)

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired session, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Portal JWT
// ---------------------------------------------------------------------------

var portalSecret = []byte("portal-test-secret-0123456789abc")

func TestPortalJWT_ValidToken(t *testing.T) {
	accountID := uuid.New()
	clientID := uuid.New()

	token, err := IssuePortalToken(portalSecret, accountID, clientID, time.Hour)
	if err != nil {
		t.Fatalf("IssuePortalToken() error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portal/patients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := PortalJWT(portalSecret)
	handler := mw(func(c echo.Context) error {
		ctx := c.Request().Context()
		if PortalAccountIDFromContext(ctx) != accountID {
			t.Errorf("expected account ID %s, got %s", accountID, PortalAccountIDFromContext(ctx))
		}
		if PortalClientIDFromContext(ctx) != clientID {
			t.Errorf("expected client ID %s, got %s", clientID, PortalClientIDFromContext(ctx))
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != "portal" {
			t.Errorf("expected portal role, got %v", roles)
		}
		return c.String(http.StatusOK, "ok")
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestPortalJWT_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portal/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := PortalJWT(portalSecret)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing header, got %v", err)
	}
}

func TestPortalJWT_WrongSecret(t *testing.T) {
	token, err := IssuePortalToken([]byte("other-secret"), uuid.New(), uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("IssuePortalToken() error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portal/patients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := PortalJWT(portalSecret)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	err = handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong secret, got %v", err)
	}
}

func TestPortalJWT_ExpiredToken(t *testing.T) {
	token, err := IssuePortalToken(portalSecret, uuid.New(), uuid.New(), -time.Hour)
	if err != nil {
		t.Fatalf("IssuePortalToken() error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portal/patients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := PortalJWT(portalSecret)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	err = handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %v", err)
	}
}

func TestPortalJWT_MalformedHeader(t *testing.T) {
	cases := []string{
		"Basic dXNlcjpwYXNz",
		"Bearer",
		"not-a-scheme token",
	}

	for _, header := range cases {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/portal/patients", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		mw := PortalJWT(portalSecret)
		handler := mw(func(c echo.Context) error {
			return c.String(http.StatusOK, "ok")
		})

		err := handler(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %v", header, err)
		}
	}
}
