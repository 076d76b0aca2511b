package auth

import (
	"github.com/labstack/echo/v4"
)

// Middleware returns an Echo middleware that sets "user_id" in the Echo
// context to the session user, so handlers read the acting user the same
// way for every request.
func Middleware(userID func() int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", userID())
			return next(c)
		}
	}
}

// GetUserID extracts the session user ID from the Echo context.
func GetUserID(c echo.Context) int64 {
	id, _ := c.Get("user_id").(int64)
	return id
}
