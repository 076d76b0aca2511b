package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/retrostate/internal/auth"
	"github.com/victorivanov/retrostate/internal/observability"
	"github.com/victorivanov/retrostate/internal/permissions"
	"github.com/victorivanov/retrostate/internal/store"
)

// Dependencies holds all handler instances and middleware for route wiring.
type Dependencies struct {
	Session  *store.Session
	Channels *ChannelHandler
	Users    *UserHandler

	// Limiter rate-limits message posting. Nil disables limiting.
	Limiter RateLimiter
}

// SetupRouter registers all API routes on the Echo instance.
func SetupRouter(e *echo.Echo, deps *Dependencies) {
	e.Use(observability.HTTPMetricsMiddleware())

	e.GET("/health", func(c echo.Context) error {
		if deps.Session.Closed() {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "closed"})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":     "ok",
			"session_id": deps.Session.ID.String(),
		})
	})
	e.GET("/metrics", echo.WrapHandler(observability.Handler()))

	// Every request acts as the session user.
	v1 := e.Group("/api/v1", auth.Middleware(deps.Session.Me))

	channels := deps.Session.Channels
	view := RequireChannelPermission(permissions.PermViewChannel, channels)

	// Channels
	v1.GET("/channels", deps.Channels.ListChannels)
	v1.GET("/channels/:id", deps.Channels.GetChannel, view)
	v1.GET("/channels/:id/permissions", deps.Channels.GetPermissions)

	// Timeline
	v1.GET("/channels/:id/messages", deps.Channels.GetMessages, view)
	v1.POST("/channels/:id/messages", deps.Channels.SendMessage,
		RequireChannelPermission(permissions.PermSendMessages, channels),
		RateLimitMiddleware(deps.Limiter, 5, 5*time.Second),
	)
	v1.GET("/channels/:id/days/:day", deps.Channels.GetDay, view)
	v1.PUT("/channels/:id/active-day", deps.Channels.SetActiveDay, view)

	// Membership
	v1.PUT("/channels/:id/members/@me", deps.Channels.JoinChannel)
	v1.DELETE("/channels/:id/members/@me", deps.Channels.LeaveChannel,
		RequireChannelPermission(permissions.PermLeave, channels),
	)
	v1.GET("/indices", deps.Channels.GetIndices)

	// Users
	v1.GET("/users/@me", deps.Users.GetMe)
	v1.GET("/users/:id", deps.Users.GetUser)
	v1.PUT("/users/@me/channels/:id/preferences", deps.Users.SetPreference,
		RequireChannelPermission(permissions.PermToggleSidebar, channels),
	)
	v1.PUT("/users/@me/status", deps.Users.SetStatus)
}
