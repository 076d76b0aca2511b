package database

import (
	"context"
	"fmt"
	"time"

	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/store"
)

// FetchUsers returns every user record.
func (c *Catalog) FetchUsers(ctx context.Context) ([]store.RawUser, error) {
	users, err := c.Users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// FetchChannels returns every channel record with its members.
func (c *Catalog) FetchChannels(ctx context.Context) ([]store.RawChannel, error) {
	channels, err := c.Channels.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	return channels, nil
}

// FetchPreferences returns userID's stored channel preferences.
func (c *Catalog) FetchPreferences(ctx context.Context, userID int64) (map[int64]models.Preference, error) {
	prefs, err := c.Preferences.ForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing preferences of user %d: %w", userID, err)
	}
	return prefs, nil
}

// FetchRecentMessages returns the newest limit messages of a channel,
// oldest first.
func (c *Catalog) FetchRecentMessages(ctx context.Context, channelID int64, limit int) ([]store.RawMessage, error) {
	msgs, err := c.Messages.Recent(ctx, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages of channel %d: %w", channelID, err)
	}
	return msgs, nil
}

// SaveMessage stores a message accepted by the session.
func (c *Catalog) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := c.Messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("saving message %d: %w", msg.ID, err)
	}
	return nil
}

// SaveMembership records userID joining or leaving a channel.
func (c *Catalog) SaveMembership(ctx context.Context, channelID, userID int64, joined bool, at time.Time) error {
	var err error
	if joined {
		err = c.Members.Add(ctx, channelID, userID, at)
	} else {
		err = c.Members.Remove(ctx, channelID, userID)
	}
	if err != nil {
		return fmt.Errorf("saving membership of user %d in channel %d: %w", userID, channelID, err)
	}
	return nil
}

// SavePreference stores a user's preference for one channel.
func (c *Catalog) SavePreference(ctx context.Context, userID, channelID int64, pref models.Preference) error {
	if err := c.Preferences.Set(ctx, userID, channelID, pref); err != nil {
		return fmt.Errorf("saving preference of user %d: %w", userID, err)
	}
	return nil
}
