package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/retrostate/internal/auth"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/permissions"
	"github.com/victorivanov/retrostate/internal/store"
	"github.com/victorivanov/retrostate/internal/timeline"
)

// Journal persists changes the session accepted. Without one, changes live
// in memory only.
type Journal interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	SaveMembership(ctx context.Context, channelID, userID int64, joined bool, at time.Time) error
	SavePreference(ctx context.Context, userID, channelID int64, pref models.Preference) error
}

// ChannelHandler handles channel, timeline and membership endpoints.
type ChannelHandler struct {
	sess    *store.Session
	journal Journal
}

// NewChannelHandler creates a ChannelHandler. journal may be nil.
func NewChannelHandler(sess *store.Session, journal Journal) *ChannelHandler {
	return &ChannelHandler{sess: sess, journal: journal}
}

type channelResponse struct {
	models.Channel
	Permissions []string `json:"permissions"`
	Days        []string `json:"days"`
	ActiveDay   string   `json:"active_day,omitempty"`
}

// ListChannels handles GET /api/v1/channels.
func (h *ChannelHandler) ListChannels(c echo.Context) error {
	channels := h.sess.Channels.ListVisible(auth.GetUserID(c))
	if channels == nil {
		channels = []models.Channel{}
	}
	return c.JSON(http.StatusOK, channels)
}

// GetChannel handles GET /api/v1/channels/:id.
func (h *ChannelHandler) GetChannel(c echo.Context) error {
	channelID, _ := pathID(c, "id")
	userID := auth.GetUserID(c)

	ch, err := h.sess.Channels.Get(channelID)
	if err != nil {
		return mapStoreError(c, err)
	}
	perms, err := h.sess.Channels.Permissions(userID, channelID)
	if err != nil {
		return mapStoreError(c, err)
	}
	days, _ := h.sess.Channels.Days(channelID)
	active, _ := h.sess.Channels.ActiveBucket(channelID)
	if days == nil {
		days = []string{}
	}

	return c.JSON(http.StatusOK, channelResponse{
		Channel:     ch,
		Permissions: perms.Names(),
		Days:        days,
		ActiveDay:   active,
	})
}

// GetMessages handles GET /api/v1/channels/:id/messages.
func (h *ChannelHandler) GetMessages(c echo.Context) error {
	channelID, _ := pathID(c, "id")

	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			return Error(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be 1-100")
		}
		limit = parsed
	}

	var before int64
	if b := c.QueryParam("before"); b != "" {
		parsed, err := strconv.ParseInt(b, 10, 64)
		if err != nil || parsed <= 0 {
			return Error(c, http.StatusBadRequest, "INVALID_BEFORE", "invalid before cursor")
		}
		before = parsed
	}

	messages, err := h.sess.Channels.Page(channelID, before, limit)
	if err != nil {
		return mapStoreError(c, err)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return c.JSON(http.StatusOK, messages)
}

type dayResponse struct {
	Day    string           `json:"day"`
	Groups []timeline.Group `json:"groups"`
}

// GetDay handles GET /api/v1/channels/:id/days/:day.
func (h *ChannelHandler) GetDay(c echo.Context) error {
	channelID, _ := pathID(c, "id")
	day := c.Param("day")

	groups, err := h.sess.Channels.BucketsFor(channelID, day)
	if err != nil {
		return mapStoreError(c, err)
	}
	if groups == nil {
		groups = []timeline.Group{}
	}
	return c.JSON(http.StatusOK, dayResponse{Day: day, Groups: groups})
}

type activeDayRequest struct {
	Day string `json:"day"`
}

// SetActiveDay handles PUT /api/v1/channels/:id/active-day.
func (h *ChannelHandler) SetActiveDay(c echo.Context) error {
	channelID, _ := pathID(c, "id")

	var req activeDayRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if err := h.sess.Channels.SetActiveBucket(channelID, req.Day); err != nil {
		return mapStoreError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage handles POST /api/v1/channels/:id/messages.
func (h *ChannelHandler) SendMessage(c echo.Context) error {
	channelID, _ := pathID(c, "id")
	userID := auth.GetUserID(c)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if len(req.Content) > 2000 {
		return Error(c, http.StatusBadRequest, "CONTENT_TOO_LONG", "content must be at most 2000 characters")
	}

	msg, err := h.sess.PostMessage(channelID, userID, req.Content)
	if err != nil {
		return mapStoreError(c, err)
	}
	if h.journal != nil {
		if err := h.journal.SaveMessage(c.Request().Context(), &msg); err != nil {
			return persistFailed(c, err)
		}
	}
	return c.JSON(http.StatusCreated, msg)
}

// JoinChannel handles PUT /api/v1/channels/:id/members/@me. Joining a
// channel the user is already in is a no-op, except for direct channels,
// which it re-attaches.
func (h *ChannelHandler) JoinChannel(c echo.Context) error {
	channelID, ok := pathID(c, "id")
	if !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid channel id")
	}
	userID := auth.GetUserID(c)

	ch, err := h.sess.Channels.Get(channelID)
	if err != nil {
		return mapStoreError(c, err)
	}
	member := ch.IsMember(userID)
	if member && !ch.IsDirect() {
		return c.NoContent(http.StatusNoContent)
	}
	if !member {
		perms, err := h.sess.Channels.Permissions(userID, channelID)
		if err != nil {
			return mapStoreError(c, err)
		}
		if !perms.Has(permissions.PermJoin) {
			return Error(c, http.StatusForbidden, "MISSING_PERMISSIONS", "you cannot join this channel")
		}
	}

	if err := h.sess.Channels.Join(userID, channelID); err != nil {
		return mapStoreError(c, err)
	}
	if h.journal != nil && !member {
		if err := h.journal.SaveMembership(c.Request().Context(), channelID, userID, true, time.Now()); err != nil {
			return persistFailed(c, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// LeaveChannel handles DELETE /api/v1/channels/:id/members/@me.
func (h *ChannelHandler) LeaveChannel(c echo.Context) error {
	channelID, _ := pathID(c, "id")
	userID := auth.GetUserID(c)

	ch, err := h.sess.Channels.Get(channelID)
	if err != nil {
		return mapStoreError(c, err)
	}
	if err := h.sess.Channels.Leave(userID, channelID); err != nil {
		return mapStoreError(c, err)
	}
	// Leaving a direct channel only hides it locally.
	if h.journal != nil && !ch.IsDirect() {
		if err := h.journal.SaveMembership(c.Request().Context(), channelID, userID, false, time.Now()); err != nil {
			return persistFailed(c, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

type permissionsResponse struct {
	Permissions permissions.Permission `json:"permissions"`
	Names       []string               `json:"names"`
}

// GetPermissions handles GET /api/v1/channels/:id/permissions.
func (h *ChannelHandler) GetPermissions(c echo.Context) error {
	channelID, ok := pathID(c, "id")
	if !ok {
		return Error(c, http.StatusBadRequest, "INVALID_ID", "invalid channel id")
	}

	perms, err := h.sess.Channels.Permissions(auth.GetUserID(c), channelID)
	if err != nil {
		return mapStoreError(c, err)
	}
	return c.JSON(http.StatusOK, permissionsResponse{Permissions: perms, Names: perms.Names()})
}

// GetIndices handles GET /api/v1/indices.
func (h *ChannelHandler) GetIndices(c echo.Context) error {
	idx := h.sess.Channels.Indices()
	for _, list := range []*[]int64{&idx.Rooms, &idx.Direct, &idx.Mine} {
		if *list == nil {
			*list = []int64{}
		}
	}
	return c.JSON(http.StatusOK, idx)
}

func persistFailed(c echo.Context, err error) error {
	slog.Error("persisting change", "path", c.Path(), "error", err)
	return Error(c, http.StatusInternalServerError, "PERSIST_FAILED", "change applied but not saved")
}
