package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader is the header used to propagate request IDs.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the echo context key the request ID is stored under.
const RequestIDKey = "request_id"

// RequestID returns middleware that assigns each request an ID. An incoming
// X-Request-ID header is honored so IDs propagate across services; otherwise
// a new UUID is generated. The ID is stored on the context for the logger and
// echoed back on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.New().String()
			}

			c.Set(RequestIDKey, rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			return next(c)
		}
	}
}
