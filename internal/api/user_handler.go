package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/retrostate/internal/auth"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/store"
)

// PresencePublisher shares a user's status with other sessions.
type PresencePublisher interface {
	SetPresence(ctx context.Context, userID int64, status string) error
}

// UserHandler handles user profile, preference and status endpoints.
type UserHandler struct {
	users    *store.UserStore
	journal  Journal
	presence PresencePublisher
}

// NewUserHandler creates a UserHandler. journal and presence may be nil.
func NewUserHandler(users *store.UserStore, journal Journal, presence PresencePublisher) *UserHandler {
	return &UserHandler{users: users, journal: journal, presence: presence}
}

// GetMe handles GET /api/v1/users/@me.
func (h *UserHandler) GetMe(c echo.Context) error {
	user, err := h.users.Get(auth.GetUserID(c))
	if err != nil {
		return mapStoreError(c, err)
	}
	return successJSON(c, http.StatusOK, user)
}

// GetUser handles GET /api/v1/users/:id. Preferences are private to their
// owner and left out.
func (h *UserHandler) GetUser(c echo.Context) error {
	userID, ok := pathID(c, "id")
	if !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid user id")
	}

	user, err := h.users.Get(userID)
	if err != nil {
		return mapStoreError(c, err)
	}
	if userID != auth.GetUserID(c) {
		user.Preferences = nil
	}
	return successJSON(c, http.StatusOK, user)
}

type preferenceRequest struct {
	Sidebar *bool `json:"sidebar"`
}

// SetPreference handles PUT /api/v1/users/@me/channels/:id/preferences.
func (h *UserHandler) SetPreference(c echo.Context) error {
	channelID, _ := pathID(c, "id")
	userID := auth.GetUserID(c)

	var req preferenceRequest
	if err := c.Bind(&req); err != nil || req.Sidebar == nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "sidebar is required")
	}

	pref := models.Preference{Sidebar: *req.Sidebar}
	if err := h.users.SetPreference(userID, channelID, pref); err != nil {
		return mapStoreError(c, err)
	}
	if h.journal != nil {
		if err := h.journal.SavePreference(c.Request().Context(), userID, channelID, pref); err != nil {
			return persistFailed(c, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PUT /api/v1/users/@me/status. Publishing the status is
// best effort.
func (h *UserHandler) SetStatus(c echo.Context) error {
	userID := auth.GetUserID(c)

	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if err := h.users.SetStatus(userID, models.Status(req.Status)); err != nil {
		return mapStoreError(c, err)
	}
	if h.presence != nil {
		if err := h.presence.SetPresence(c.Request().Context(), userID, req.Status); err != nil {
			slog.Warn("failed to publish presence", "user_id", userID, "error", err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}
