package middleware

// identity.go exposes the caller identity stored by JWTAuth/OptionalJWT.
// Handlers and the rate limiter read it through these helpers instead of
// poking at context keys directly.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's id.  ok is false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// OptionalUserID returns a pointer to the caller id, or nil when anonymous.
func OptionalUserID(c echo.Context) *uint64 {
	if id, ok := UserID(c); ok {
		return &id
	}
	return nil
}

// Role returns the caller's role, or "" when anonymous.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// identityKey renders the caller for rate-limit keys; "anon" when
// unauthenticated.
func identityKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
