package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/retrostate/internal/auth"
	"github.com/victorivanov/retrostate/internal/permissions"
)

// PermissionSource computes a user's permissions in a channel.
type PermissionSource interface {
	Permissions(userID, channelID int64) (permissions.Permission, error)
}

// RequireChannelPermission returns middleware that checks channel-level
// permissions for the acting user. It expects the route to have a ":id"
// param for the channel ID.
func RequireChannelPermission(perm permissions.Permission, channels PermissionSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			channelID, ok := pathID(c, "id")
			if !ok {
				return errorJSON(c, http.StatusBadRequest, "INVALID_ID", "invalid channel id")
			}

			perms, err := channels.Permissions(auth.GetUserID(c), channelID)
			if err != nil {
				return mapStoreError(c, err)
			}
			if !perms.Has(perm) {
				return errorJSON(c, http.StatusForbidden, "MISSING_PERMISSIONS", "you do not have "+perm.String()+" in this channel")
			}
			return next(c)
		}
	}
}
