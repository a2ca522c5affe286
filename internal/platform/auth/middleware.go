package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// StaffSession returns middleware that authenticates staff requests via the
// signed session cookie. The cookie signature is verified before the store
// lookup, so forged IDs never hit the database. On success the staff ID and
// role snapshot are placed on the request context.
func StaffSession(store SessionStore, secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			sid, ok := DecodeSessionCookie(cookie.Value, secret)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
			}

			sess, err := store.Get(c.Request().Context(), sid)
			if err != nil {
				if errors.Is(err, ErrSessionNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "session lookup failed")
			}
			if time.Now().After(sess.ExpiresAt) {
				return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, sess.StaffID.String())
			ctx = context.WithValue(ctx, UserRolesKey, sess.Roles)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// PortalClaims are the JWT claims issued to client portal accounts. Subject
// is the portal account ID; ClientID is the client record the account may
// see.
type PortalClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
}

// IssuePortalToken signs an HS256 token for a portal account.
func IssuePortalToken(secret []byte, accountID, clientID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := PortalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ClientID: clientID.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// PortalJWT returns middleware that authenticates portal requests via a
// Bearer token. On success the portal account and client IDs are placed on
// the request context, along with the "portal" role so shared middleware
// treats portal users uniformly.
func PortalJWT(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &PortalClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			accountID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			clientID, err := uuid.Parse(claims.ClientID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, PortalAccountIDKey, accountID)
			ctx = context.WithValue(ctx, PortalClientIDKey, clientID)
			ctx = context.WithValue(ctx, UserIDKey, accountID.String())
			ctx = context.WithValue(ctx, UserRolesKey, []string{"portal"})
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
