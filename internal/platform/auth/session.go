package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionCookieName is the cookie carrying the signed staff session ID.
const SessionCookieName = "vetpms_session"

// Session is a server-side staff login session. Roles are snapshotted at
// login time, so a role change takes effect on next login.
type Session struct {
	ID        uuid.UUID
	StaffID   uuid.UUID
	Roles     []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore persists staff sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteForStaff(ctx context.Context, staffID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// EncodeSessionCookie produces the cookie value "<session-id>.<signature>"
// where the signature is an HMAC-SHA256 over the session ID. Tampering with
// the ID invalidates the signature, so only server-issued IDs reach the
// session store lookup.
func EncodeSessionCookie(id uuid.UUID, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id.String()))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return id.String() + "." + sig
}

// DecodeSessionCookie validates the signature and returns the session ID.
func DecodeSessionCookie(value string, secret []byte) (uuid.UUID, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return uuid.Nil, false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(parts[0]))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(parts[1]), []byte(expected)) {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// SetSessionCookie writes the signed session cookie on the response.
func SetSessionCookie(c echo.Context, value string, ttl time.Duration, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(ttl),
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
