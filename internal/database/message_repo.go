package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/snowflake"
	"github.com/victorivanov/retrostate/internal/store"
)

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepo{pool: pool}
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, channel_id, author_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ChannelID, msg.AuthorID, msg.Content, msg.Timestamp,
	)
	return err
}

// Recent returns the newest limit messages of a channel, oldest first.
func (r *messageRepo) Recent(ctx context.Context, channelID int64, limit int) ([]store.RawMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, channel_id, author_id, content, created_at FROM (
		     SELECT id, channel_id, author_id, content, created_at
		     FROM messages
		     WHERE channel_id = $1
		     ORDER BY id DESC
		     LIMIT $2
		 ) recent
		 ORDER BY id`,
		channelID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []store.RawMessage
	for rows.Next() {
		var (
			id, chID, authorID int64
			createdAt          time.Time
			m                  store.RawMessage
		)
		if err := rows.Scan(&id, &chID, &authorID, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		ms := createdAt.UnixMilli()
		m.ID, m.ChannelID, m.AuthorID = snowflake.ID(id), snowflake.ID(chID), snowflake.ID(authorID)
		m.Timestamp = &ms
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
