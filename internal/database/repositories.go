package database

import (
	"context"
	"time"

	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/store"
)

// Read methods return raw records; the stores validate and normalize them.

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]store.RawUser, error)
	Delete(ctx context.Context, id int64) error
}

type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	List(ctx context.Context) ([]store.RawChannel, error)
	Delete(ctx context.Context, id int64) error
}

type MemberRepository interface {
	Add(ctx context.Context, channelID, userID int64, joinedAt time.Time) error
	Remove(ctx context.Context, channelID, userID int64) error
}

type PreferenceRepository interface {
	Set(ctx context.Context, userID, channelID int64, pref models.Preference) error
	ForUser(ctx context.Context, userID int64) (map[int64]models.Preference, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	Recent(ctx context.Context, channelID int64, limit int) ([]store.RawMessage, error)
}
