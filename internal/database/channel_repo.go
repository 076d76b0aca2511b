package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/snowflake"
	"github.com/victorivanov/retrostate/internal/store"
)

type channelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepository(pool *pgxpool.Pool) ChannelRepository {
	return &channelRepo{pool: pool}
}

// Create inserts the channel and its members in one transaction. Members
// keep the order of ch.Members.
func (r *channelRepo) Create(ctx context.Context, ch *models.Channel) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO channels (id, name, access, owner_id) VALUES ($1, $2, $3, $4)`,
			ch.ID, ch.Name, string(ch.Access), ch.OwnerID,
		); err != nil {
			return fmt.Errorf("inserting channel: %w", err)
		}
		for i, userID := range ch.Members {
			if _, err := tx.Exec(ctx,
				`INSERT INTO channel_members (channel_id, user_id, position) VALUES ($1, $2, $3)`,
				ch.ID, userID, i,
			); err != nil {
				return fmt.Errorf("inserting member %d: %w", userID, err)
			}
		}
		return nil
	})
}

// List returns every channel with its members, oldest channel first.
func (r *channelRepo) List(ctx context.Context) ([]store.RawChannel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name, c.access, c.owner_id,
		        COALESCE(array_agg(m.user_id ORDER BY m.position, m.user_id)
		                 FILTER (WHERE m.user_id IS NOT NULL), '{}')
		 FROM channels c
		 LEFT JOIN channel_members m ON m.channel_id = c.id
		 GROUP BY c.id
		 ORDER BY c.created_at, c.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []store.RawChannel
	for rows.Next() {
		var (
			id      int64
			owner   *int64
			members []int64
			ch      store.RawChannel
		)
		if err := rows.Scan(&id, &ch.Name, &ch.Access, &owner, &members); err != nil {
			return nil, err
		}
		ch.ID = snowflake.ID(id)
		if owner != nil {
			o := snowflake.ID(*owner)
			ch.OwnerID = &o
		}
		ch.Members = make([]snowflake.ID, len(members))
		for i, m := range members {
			ch.Members[i] = snowflake.ID(m)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *channelRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	return err
}
