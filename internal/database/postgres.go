package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1
	return pgxpool.NewWithConfig(ctx, config)
}

// Catalog bundles the repositories the loader reads from.
type Catalog struct {
	Users       UserRepository
	Channels    ChannelRepository
	Members     MemberRepository
	Preferences PreferenceRepository
	Messages    MessageRepository
}

// NewCatalog creates every repository over one pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{
		Users:       NewUserRepository(pool),
		Channels:    NewChannelRepository(pool),
		Members:     NewMemberRepository(pool),
		Preferences: NewPreferenceRepository(pool),
		Messages:    NewMessageRepository(pool),
	}
}
